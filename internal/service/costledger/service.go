package costledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
)

// Per-1k-token rates in USD. Unknown models price at the default rate.
var modelRates = map[string]float64{
	"gpt-4-turbo-preview":    0.01,
	"gpt-4":                  0.03,
	"text-embedding-3-large": 0.00013,
	"text-embedding-3-small": 0.00002,
}

const defaultRate = 0.01

// Estimate is a pre-flight cost projection for a batch of work.
type Estimate struct {
	MinCost       float64            `json:"min_cost"`
	MaxCost       float64            `json:"max_cost"`
	EstimatedCost float64            `json:"estimated_cost"`
	Breakdown     map[string]float64 `json:"breakdown"`
}

// Service meters spend. All public methods are safe for concurrent use if
// the underlying repository is concurrency-safe.
type Service struct {
	repo       Repository
	dailyLimit float64
	now        func() time.Time
}

// NewService creates a cost ledger with the given daily ceiling in USD.
func NewService(repo Repository, dailyLimit float64) *Service {
	return &Service{repo: repo, dailyLimit: dailyLimit, now: time.Now}
}

// CalculateCost prices one operation. When the token count is known the
// price is exact; otherwise a flat per-operation estimate applies.
func CalculateCost(kind domain.OperationKind, model string, tokens int) float64 {
	rate, ok := modelRates[model]
	if !ok {
		rate = defaultRate
	}

	if tokens > 0 {
		return float64(tokens) / 1000 * rate
	}

	switch kind {
	case domain.OpEnrichment:
		return rate * 5
	case domain.OpEmbedding:
		if ok {
			return rate
		}
		return 0.0001
	case domain.OpDraft, domain.OpClassification:
		return rate * 3
	}
	return 0
}

// Track logs one priced operation and returns its cost. contactID and
// draftID may be empty when the operation is not tied to an entity.
func (s *Service) Track(ctx context.Context, kind domain.OperationKind, model string, tokens int, contactID, draftID string) (float64, error) {
	cost := CalculateCost(kind, model, tokens)

	entry := &domain.CostLogEntry{
		ID:         uuid.New().String(),
		Kind:       kind,
		Model:      model,
		TokensUsed: tokens,
		Cost:       cost,
		ContactID:  contactID,
		DraftID:    draftID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return 0, fmt.Errorf("log cost entry: %w", err)
	}

	log.Printf("[CostLedger] Tracked %s cost: $%.4f (model: %s)", kind, cost, model)
	return cost, nil
}

// DailyCost returns the total spend for the UTC day containing date.
func (s *Service) DailyCost(ctx context.Context, date time.Time) (float64, error) {
	start := domain.UTCDay(date)
	return s.repo.SumBetween(ctx, start, start.AddDate(0, 0, 1))
}

// CheckBudget reports whether today's spend is still under the ceiling.
func (s *Service) CheckBudget(ctx context.Context) (bool, error) {
	spent, err := s.DailyCost(ctx, s.now())
	if err != nil {
		return false, err
	}
	if s.dailyLimit-spent <= 0 {
		log.Printf("[CostLedger] Budget limit reached: $%.2f / $%.2f", spent, s.dailyLimit)
		return false, nil
	}
	return true, nil
}

// RemainingBudget returns today's unspent budget, floored at zero.
func (s *Service) RemainingBudget(ctx context.Context) (float64, error) {
	spent, err := s.DailyCost(ctx, s.now())
	if err != nil {
		return 0, err
	}
	remaining := s.dailyLimit - spent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Breakdown returns today's spend grouped by model.
func (s *Service) Breakdown(ctx context.Context) (map[string]float64, error) {
	return s.repo.BreakdownByModel(ctx, domain.UTCDay(s.now()))
}

// List returns recent ledger entries, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.CostLogEntry, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// EstimateEnrichment projects the cost of enriching and embedding n
// contacts with the given models.
func EstimateEnrichment(n int, chatModel, embeddingModel string) Estimate {
	enrichment := CalculateCost(domain.OpEnrichment, chatModel, 0) * float64(n)
	embedding := CalculateCost(domain.OpEmbedding, embeddingModel, 0) * float64(n)
	total := enrichment + embedding

	return Estimate{
		MinCost:       total * 0.8,
		MaxCost:       total * 1.2,
		EstimatedCost: total,
		Breakdown: map[string]float64{
			"enrichment": enrichment,
			"embedding":  embedding,
		},
	}
}
