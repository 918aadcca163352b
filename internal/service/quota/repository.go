package quota

import (
	"context"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Repository defines the data access contract for quota records.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns the record for (sender, day). Returns ErrNotFound when
	// the day has not been touched yet.
	Get(ctx context.Context, sender string, day time.Time) (*domain.QuotaRecord, error)

	// Create inserts a fresh record. Concurrent creation of the same
	// (sender, day) must not produce duplicates; implementations upsert.
	Create(ctx context.Context, r *domain.QuotaRecord) error

	// IncrementIfAvailable atomically adds count to emails_sent if the
	// result stays within the limit, returning the new counter value.
	// Returns ErrExhausted without modifying the record otherwise.
	IncrementIfAvailable(ctx context.Context, sender string, day time.Time, count int) (int, error)

	// Latest returns the most recent record for the sender, or ErrNotFound.
	Latest(ctx context.Context, sender string) (*domain.QuotaRecord, error)

	// ResetDay zeroes the counter for (sender, day). Testing hook.
	ResetDay(ctx context.Context, sender string, day time.Time) error
}
