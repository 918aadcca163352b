package costledger_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/costledger"
)

// memRepo is an in-memory cost log repository for unit testing.
type memRepo struct {
	mu      sync.Mutex
	entries []domain.CostLogEntry
}

func (m *memRepo) Insert(_ context.Context, e *domain.CostLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) SumBetween(_ context.Context, from, to time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, e := range m.entries {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			total += e.Cost
		}
	}
	return total, nil
}

func (m *memRepo) BreakdownByModel(_ context.Context, from time.Time) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64)
	for _, e := range m.entries {
		if !e.CreatedAt.Before(from) {
			out[e.Model] += e.Cost
		}
	}
	return out, nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]domain.CostLogEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CostLogEntry(nil), m.entries...), len(m.entries), nil
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCalculateCostWithTokens(t *testing.T) {
	cost := costledger.CalculateCost(domain.OpDraft, "gpt-4-turbo-preview", 2000)
	if !almostEqual(cost, 0.02) {
		t.Fatalf("expected 0.02, got %f", cost)
	}

	cost = costledger.CalculateCost(domain.OpEmbedding, "text-embedding-3-large", 1000)
	if !almostEqual(cost, 0.00013) {
		t.Fatalf("expected 0.00013, got %f", cost)
	}
}

func TestCalculateCostEstimates(t *testing.T) {
	// No token count: flat per-operation estimates.
	if cost := costledger.CalculateCost(domain.OpEnrichment, "gpt-4-turbo-preview", 0); !almostEqual(cost, 0.05) {
		t.Fatalf("enrichment estimate: expected 0.05, got %f", cost)
	}
	if cost := costledger.CalculateCost(domain.OpDraft, "gpt-4", 0); !almostEqual(cost, 0.09) {
		t.Fatalf("draft estimate: expected 0.09, got %f", cost)
	}
	if cost := costledger.CalculateCost(domain.OpEmbedding, "text-embedding-3-small", 0); !almostEqual(cost, 0.00002) {
		t.Fatalf("embedding estimate: expected 0.00002, got %f", cost)
	}
	// Unknown models price at the default rate.
	if cost := costledger.CalculateCost(domain.OpEnrichment, "mystery-model", 0); !almostEqual(cost, 0.05) {
		t.Fatalf("unknown model: expected 0.05, got %f", cost)
	}
	if cost := costledger.CalculateCost(domain.OpEmbedding, "mystery-model", 0); !almostEqual(cost, 0.0001) {
		t.Fatalf("unknown embedding model: expected 0.0001, got %f", cost)
	}
}

func TestTrackLogsEntry(t *testing.T) {
	repo := &memRepo{}
	svc := costledger.NewService(repo, 100.0)

	cost, err := svc.Track(context.Background(), domain.OpEnrichment, "gpt-4-turbo-preview", 500, "contact-1", "")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if !almostEqual(cost, 0.005) {
		t.Fatalf("expected 0.005, got %f", cost)
	}

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Kind != domain.OpEnrichment || e.ContactID != "contact-1" || e.TokensUsed != 500 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestCheckBudget(t *testing.T) {
	repo := &memRepo{}
	svc := costledger.NewService(repo, 0.01)
	ctx := context.Background()

	ok, err := svc.CheckBudget(ctx)
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if !ok {
		t.Fatal("expected budget available before any spend")
	}

	// One enrichment estimate ($0.05) blows the $0.01 ceiling.
	if _, err := svc.Track(ctx, domain.OpEnrichment, "gpt-4-turbo-preview", 0, "", ""); err != nil {
		t.Fatalf("Track: %v", err)
	}

	ok, err = svc.CheckBudget(ctx)
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if ok {
		t.Fatal("expected budget exhausted")
	}

	remaining, err := svc.RemainingBudget(ctx)
	if err != nil {
		t.Fatalf("RemainingBudget: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %f", remaining)
	}
}

func TestBreakdown(t *testing.T) {
	repo := &memRepo{}
	svc := costledger.NewService(repo, 100.0)
	ctx := context.Background()

	svc.Track(ctx, domain.OpEnrichment, "gpt-4-turbo-preview", 1000, "", "")
	svc.Track(ctx, domain.OpEmbedding, "text-embedding-3-large", 1000, "", "")
	svc.Track(ctx, domain.OpDraft, "gpt-4-turbo-preview", 3000, "", "")

	breakdown, err := svc.Breakdown(ctx)
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if !almostEqual(breakdown["gpt-4-turbo-preview"], 0.04) {
		t.Fatalf("expected 0.04 for chat model, got %f", breakdown["gpt-4-turbo-preview"])
	}
	if !almostEqual(breakdown["text-embedding-3-large"], 0.00013) {
		t.Fatalf("expected 0.00013 for embedding model, got %f", breakdown["text-embedding-3-large"])
	}
}

func TestEstimateEnrichment(t *testing.T) {
	est := costledger.EstimateEnrichment(10, "gpt-4-turbo-preview", "text-embedding-3-large")

	wantEnrichment := 0.05 * 10
	wantEmbedding := 0.00013 * 10
	wantTotal := wantEnrichment + wantEmbedding

	if !almostEqual(est.Breakdown["enrichment"], wantEnrichment) {
		t.Fatalf("enrichment breakdown: got %f", est.Breakdown["enrichment"])
	}
	if !almostEqual(est.Breakdown["embedding"], wantEmbedding) {
		t.Fatalf("embedding breakdown: got %f", est.Breakdown["embedding"])
	}
	if !almostEqual(est.EstimatedCost, wantTotal) {
		t.Fatalf("estimated cost: got %f", est.EstimatedCost)
	}
	if !almostEqual(est.MinCost, wantTotal*0.8) || !almostEqual(est.MaxCost, wantTotal*1.2) {
		t.Fatalf("min/max: got %f / %f", est.MinCost, est.MaxCost)
	}
}
