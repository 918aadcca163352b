package contact

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether s looks like a deliverable address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ImportResult summarizes a CSV import run.
type ImportResult struct {
	Imported     []domain.Contact `json:"imported"`
	SuccessCount int              `json:"success_count"`
	ErrorCount   int              `json:"error_count"`
	Errors       []string         `json:"errors"`
	Duplicates   []string         `json:"duplicates"`
}

// ImportCSV loads contacts from CSV content. The header row must include
// "name" and "email"; optional columns are industry and timezone. Rows
// with missing or invalid fields are reported, not fatal, and duplicate
// addresses are skipped.
func (s *Service) ImportCSV(ctx context.Context, content string) (*ImportResult, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["email"]; !ok {
		return nil, fmt.Errorf("csv missing required column %q", "email")
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	result := &ImportResult{}
	for rowNum := 2; ; rowNum++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			result.ErrorCount++
			continue
		}

		name := field(row, "name")
		email := field(row, "email")
		if name == "" || email == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Missing name or email", rowNum))
			result.ErrorCount++
			continue
		}
		if !ValidEmail(email) {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Invalid email '%s'", rowNum, email))
			result.ErrorCount++
			continue
		}

		if _, err := s.repo.GetByEmail(ctx, email); err == nil {
			result.Duplicates = append(result.Duplicates, email)
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		now := s.now().UTC()
		c := &domain.Contact{
			ID:        uuid.New().String(),
			Name:      name,
			Email:     email,
			Industry:  field(row, "industry"),
			Timezone:  field(row, "timezone"),
			Status:    domain.ContactImported,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, c); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			result.ErrorCount++
			continue
		}
		result.Imported = append(result.Imported, *c)
		result.SuccessCount++
	}

	log.Printf("[Contact] Imported %d contacts, %d errors, %d duplicates",
		result.SuccessCount, result.ErrorCount, len(result.Duplicates))
	return result, nil
}

var exportHeader = []string{
	"id", "name", "email", "industry", "title", "company",
	"status", "relevance_score", "created_at", "updated_at",
}

// ExportCSV renders contacts matching the filter as CSV.
func (s *Service) ExportCSV(ctx context.Context, f ListFilter) (string, error) {
	contacts, _, err := s.repo.List(ctx, f)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(exportHeader); err != nil {
		return "", err
	}
	for _, c := range contacts {
		row := []string{
			c.ID, c.Name, c.Email, c.Industry, c.Title, c.Company,
			string(c.Status),
			strconv.FormatFloat(c.RelevanceScore, 'f', -1, 64),
			c.CreatedAt.Format(time.RFC3339),
			c.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ExportJSON renders contacts matching the filter as indented JSON.
func (s *Service) ExportJSON(ctx context.Context, f ListFilter) (string, error) {
	contacts, _, err := s.repo.List(ctx, f)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(contacts, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
