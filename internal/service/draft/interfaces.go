package draft

import (
	"context"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/pkg/distlock"
)

// ContactStore is the slice of the contact service the draft layer needs.
type ContactStore interface {
	Get(ctx context.Context, id string) (*domain.Contact, error)
}

// QuotaManager reserves slots from the daily send allowance.
type QuotaManager interface {
	CanSend(ctx context.Context, count int) (bool, error)
	Reserve(ctx context.Context, count int) (int, error)
	Remaining(ctx context.Context) (int, error)
}

// CostTracker meters priced model operations.
type CostTracker interface {
	Track(ctx context.Context, kind domain.OperationKind, model string, tokens int, contactID, draftID string) (float64, error)
	CheckBudget(ctx context.Context) (bool, error)
}

// Auditor records state transitions.
type Auditor interface {
	Record(ctx context.Context, e *domain.AuditEntry) error
}

// TokenIssuer mints unsubscribe tokens for new drafts.
type TokenIssuer interface {
	GenerateToken(ctx context.Context, contactID string) (token, url string, err error)
}

// LockProvider hands out the per-draft send lock.
type LockProvider interface {
	ForDraftSend(draftID string) distlock.DistLock
}
