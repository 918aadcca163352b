package contact

import (
	"context"

	"github.com/ignite/outreach-engine/internal/domain"
)

// CostTracker meters priced model operations. Implemented by the cost
// ledger service.
type CostTracker interface {
	Track(ctx context.Context, kind domain.OperationKind, model string, tokens int, contactID, draftID string) (float64, error)
	CheckBudget(ctx context.Context) (bool, error)
}

// Auditor records state transitions. Implemented by the audit log store.
type Auditor interface {
	Record(ctx context.Context, e *domain.AuditEntry) error
}
