package reply

import (
	"context"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Repository defines the data access contract for replies.
type Repository interface {
	// Get returns a single reply. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Reply, error)

	// Insert stores a new reply.
	Insert(ctx context.Context, r *domain.Reply) error

	// UpdateClassification overwrites the stored intent and its metadata.
	UpdateClassification(ctx context.Context, id string, intent domain.ReplyIntent, classified bool, confidence float64, availability string) error

	// ListByDraft returns replies for a draft, oldest first.
	ListByDraft(ctx context.Context, draftID string) ([]domain.Reply, error)

	// ListUnclassified returns replies whose classification failed,
	// oldest first.
	ListUnclassified(ctx context.Context, limit int) ([]domain.Reply, error)

	// HasReplyToDraft reports whether any reply exists for the draft.
	HasReplyToDraft(ctx context.Context, draftID string) (bool, error)
}
