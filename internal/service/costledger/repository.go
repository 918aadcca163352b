package costledger

import (
	"context"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Repository defines the data access contract for cost log entries.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Insert appends one cost log entry.
	Insert(ctx context.Context, e *domain.CostLogEntry) error

	// SumBetween returns the total cost of entries with
	// from <= created_at < to.
	SumBetween(ctx context.Context, from, to time.Time) (float64, error)

	// BreakdownByModel returns per-model cost totals for entries with
	// created_at >= from.
	BreakdownByModel(ctx context.Context, from time.Time) (map[string]float64, error)

	// List returns recent entries, newest first.
	List(ctx context.Context, limit, offset int) ([]domain.CostLogEntry, int, error)
}
