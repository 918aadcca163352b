package contact

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/cluster"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/llm"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
	"github.com/ignite/outreach-engine/internal/service/costledger"
)

// Service implements contact business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo       Repository
	provider   llm.Provider
	ledger     CostTracker
	auditor    Auditor
	drafts     DraftScrubber
	maxRetries int

	// sleep is injectable so tests don't wait out backoff.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewService creates a contact service. drafts may be nil when draft
// scrubbing on delete is not wired (tests).
func NewService(repo Repository, provider llm.Provider, ledger CostTracker, auditor Auditor, drafts DraftScrubber, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{
		repo:       repo,
		provider:   provider,
		ledger:     ledger,
		auditor:    auditor,
		drafts:     drafts,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// WithSleep overrides the backoff sleeper. Tests use this to skip real
// delays.
func (s *Service) WithSleep(fn func(time.Duration)) *Service {
	s.sleep = fn
	return s
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, id string) (*domain.Contact, error) {
	return s.repo.Get(ctx, id)
}

// List returns contacts matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Contact, int, error) {
	return s.repo.List(ctx, f)
}

// Create validates and persists a new contact in imported status.
func (s *Service) Create(ctx context.Context, name, email, industry, timezone string) (*domain.Contact, error) {
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("name and email are required")
	}
	if !ValidEmail(email) {
		return nil, fmt.Errorf("invalid email %q", email)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	c := &domain.Contact{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Email:     email,
		Industry:  strings.TrimSpace(industry),
		Timezone:  timezone,
		Status:    domain.ContactImported,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Enrich runs the model enrichment loop for one contact. Transient provider
// failures are retried with exponential backoff; a malformed model answer
// fails immediately since the raw response is already consumed. Failures
// land on the contact as a status, not as a returned error.
func (s *Service) Enrich(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanRetryEnrichment() {
		return nil, ErrNotEnrichable
	}

	if s.ledger != nil {
		ok, err := s.ledger.CheckBudget(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, costledger.ErrBudgetExceeded
		}
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.sleep(time.Duration(1<<(attempt-1)) * time.Second)
			log.Printf("[Enrichment] Retrying contact %s (attempt %d)", id, attempt)
		}

		result, err := s.provider.EnrichContact(ctx, c.Name, c.Email)
		if err == nil {
			return s.applyEnrichment(ctx, c, result)
		}

		var malformed *llm.MalformedResponseError
		if errors.As(err, &malformed) {
			if ferr := s.repo.SetEnrichmentFailed(ctx, id, domain.ContactEnrichmentFailed, "Invalid response format", attempt); ferr != nil {
				return nil, ferr
			}
			log.Printf("[Enrichment] Invalid response for contact %s: %v", id, err)
			return s.repo.Get(ctx, id)
		}
		lastErr = err
	}

	// A persistent rate limit gets its own status so the caller can back
	// off the whole batch instead of burning retries per contact.
	status := domain.ContactEnrichmentFailed
	var transient *llm.TransientError
	if errors.As(lastErr, &transient) && transient.StatusCode == http.StatusTooManyRequests {
		status = domain.ContactRateLimited
	}

	msg := fmt.Sprintf("API error after %d retries: %v", s.maxRetries, lastErr)
	if err := s.repo.SetEnrichmentFailed(ctx, id, status, msg, s.maxRetries); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) applyEnrichment(ctx context.Context, c *domain.Contact, result *llm.EnrichmentResult) (*domain.Contact, error) {
	fields := EnrichedFields{
		Title:          result.Title,
		Company:        result.Company,
		Painpoint:      result.Painpoint,
		RelevanceScore: domain.ClampRelevance(result.RelevanceScore),
	}
	if err := s.repo.SetEnriched(ctx, c.ID, fields); err != nil {
		return nil, err
	}

	if s.ledger != nil {
		if _, err := s.ledger.Track(ctx, domain.OpEnrichment, result.Usage.Model, result.Usage.TotalTokens, c.ID, ""); err != nil {
			log.Printf("[Enrichment] Failed to track cost for contact %s: %v", c.ID, err)
		}
	}
	if s.auditor != nil {
		_ = s.auditor.Record(ctx, &domain.AuditEntry{
			ID:         uuid.New().String(),
			EntityType: "contact",
			EntityID:   c.ID,
			Action:     "enrichment",
			OldStatus:  string(c.Status),
			NewStatus:  string(domain.ContactEnriched),
			CreatedAt:  s.now().UTC(),
		})
	}

	log.Printf("[Enrichment] Enriched contact %s: %s", c.ID, c.Name)
	return s.repo.Get(ctx, c.ID)
}

// BatchResult summarizes a batch enrichment run.
type BatchResult struct {
	Processed     int  `json:"processed"`
	Enriched      int  `json:"enriched"`
	Failed        int  `json:"failed"`
	BudgetStopped bool `json:"budget_stopped"`
}

// EnrichBatch enriches the given contacts in order, pausing briefly between
// batches to stay under provider rate limits and stopping early when the
// daily budget runs out.
func (s *Service) EnrichBatch(ctx context.Context, ids []string, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = 10
	}

	result := &BatchResult{}
	for i, id := range ids {
		if s.ledger != nil {
			ok, err := s.ledger.CheckBudget(ctx)
			if err != nil {
				return result, err
			}
			if !ok {
				log.Printf("[Enrichment] Budget limit reached after %d contacts", i)
				result.BudgetStopped = true
				break
			}
		}

		c, err := s.Enrich(ctx, id)
		result.Processed++
		switch {
		case err != nil:
			result.Failed++
			log.Printf("[Enrichment] Failed to enrich contact %s: %v", id, err)
		case c.Status == domain.ContactEnriched:
			result.Enriched++
		default:
			result.Failed++
		}

		if (i+1)%batchSize == 0 {
			s.sleep(time.Second)
		}
	}
	return result, nil
}

// embeddingText builds the string a contact is embedded from.
func embeddingText(c *domain.Contact) string {
	parts := []string{c.Name, c.Industry, c.Company, c.Painpoint, c.Title}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// GenerateEmbedding embeds one contact's profile text and stores the vector.
func (s *Service) GenerateEmbedding(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	result, err := s.provider.EmbedText(ctx, embeddingText(c))
	if err != nil {
		return fmt.Errorf("embed contact %s: %w", id, err)
	}

	if err := s.repo.SaveEmbedding(ctx, id, result.Vector); err != nil {
		return err
	}
	if s.ledger != nil {
		if _, err := s.ledger.Track(ctx, domain.OpEmbedding, result.Usage.Model, result.Usage.TotalTokens, id, ""); err != nil {
			log.Printf("[Embedding] Failed to track cost for contact %s: %v", id, err)
		}
	}
	return nil
}

// ClusterSummary describes one cluster of contacts.
type ClusterSummary struct {
	Index      int      `json:"index"`
	Label      string   `json:"label"`
	ContactIDs []string `json:"contact_ids"`
}

// Cluster groups the given contacts by embedding similarity. Contacts
// without a stored embedding are embedded first. Labels come from the most
// common industry in each cluster.
func (s *Service) Cluster(ctx context.Context, ids []string, k int) ([]ClusterSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	contacts := make([]*domain.Contact, 0, len(ids))
	for _, id := range ids {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.Embedding == nil {
			if err := s.GenerateEmbedding(ctx, id); err != nil {
				return nil, err
			}
			if c, err = s.repo.Get(ctx, id); err != nil {
				return nil, err
			}
		}
		contacts = append(contacts, c)
	}

	if len(contacts) == 1 {
		if err := s.repo.AssignCluster(ctx, contacts[0].ID, 0); err != nil {
			return nil, err
		}
		return []ClusterSummary{{Index: 0, Label: contacts[0].Industry, ContactIDs: []string{contacts[0].ID}}}, nil
	}

	vectors := make([][]float64, len(contacts))
	for i, c := range contacts {
		vectors[i] = c.Embedding
	}
	assignments := cluster.KMeans(vectors, k)

	grouped := make(map[int][]*domain.Contact)
	for i, a := range assignments {
		grouped[a] = append(grouped[a], contacts[i])
		if err := s.repo.AssignCluster(ctx, contacts[i].ID, a); err != nil {
			return nil, err
		}
	}

	indexes := make([]int, 0, len(grouped))
	for idx := range grouped {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	summaries := make([]ClusterSummary, 0, len(grouped))
	for _, idx := range indexes {
		members := grouped[idx]
		cs := ClusterSummary{Index: idx, Label: dominantIndustry(members, idx)}
		for _, m := range members {
			cs.ContactIDs = append(cs.ContactIDs, m.ID)
		}
		summaries = append(summaries, cs)
	}

	log.Printf("[Clustering] Created %d clusters from %d contacts", len(summaries), len(contacts))
	return summaries, nil
}

func dominantIndustry(members []*domain.Contact, idx int) string {
	counts := make(map[string]int)
	for _, m := range members {
		if m.Industry != "" {
			counts[m.Industry]++
		}
	}
	best, bestCount := "", 0
	for industry, n := range counts {
		if n > bestCount || (n == bestCount && industry < best) {
			best, bestCount = industry, n
		}
	}
	if best == "" {
		return fmt.Sprintf("Cluster %d", idx)
	}
	return best
}

// Delete soft-deletes a contact: the row is hidden from lists and its PII
// replaced with placeholders, and the contact's drafts stop carrying the
// real address. Drafts and replies otherwise stay for bookkeeping.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	scrubEmail := fmt.Sprintf("deleted_%s@deleted.invalid", id)
	scrubName := "Deleted User " + id
	if err := s.repo.SoftDelete(ctx, id, scrubEmail, scrubName); err != nil {
		return err
	}
	if s.drafts != nil {
		if err := s.drafts.ScrubContactEmail(ctx, id, scrubEmail); err != nil {
			return fmt.Errorf("scrub drafts for contact %s: %w", id, err)
		}
	}
	if s.auditor != nil {
		_ = s.auditor.Record(ctx, &domain.AuditEntry{
			ID:         uuid.New().String(),
			EntityType: "contact",
			EntityID:   id,
			Action:     "delete",
			OldStatus:  string(c.Status),
			NewStatus:  string(c.Status),
			CreatedAt:  s.now().UTC(),
		})
	}

	log.Printf("[Contact] Deleted data for contact %s (%s)", id, logger.RedactEmail(c.Email))
	return nil
}
