package contact

import (
	"context"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Repository defines the data access contract for contacts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single contact. Returns ErrNotFound if it doesn't
	// exist or has been deleted.
	Get(ctx context.Context, id string) (*domain.Contact, error)

	// GetByEmail looks a contact up by address among non-deleted rows.
	GetByEmail(ctx context.Context, email string) (*domain.Contact, error)

	// List returns contacts matching the filter, ordered by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.Contact, int, error)

	// Create inserts a new contact.
	Create(ctx context.Context, c *domain.Contact) error

	// SetEnriched writes the enrichment profile and the enriched status
	// in one statement.
	SetEnriched(ctx context.Context, id string, e EnrichedFields) error

	// SetEnrichmentFailed records a terminal or retryable failure.
	SetEnrichmentFailed(ctx context.Context, id string, status domain.ContactStatus, errMsg string, retryCount int) error

	// SaveEmbedding stores the contact's embedding vector.
	SaveEmbedding(ctx context.Context, id string, vec []float64) error

	// AssignCluster stores the cluster index for a contact.
	AssignCluster(ctx context.Context, id string, cluster int) error

	// MarkRepliedInterested flags a contact whose reply classified as
	// interested.
	MarkRepliedInterested(ctx context.Context, id string) error

	// MarkUnsubscribed flags a contact as opted out.
	MarkUnsubscribed(ctx context.Context, id string, at time.Time) error

	// MarkDoNotFollowup exempts a contact from the follow-up pipeline.
	MarkDoNotFollowup(ctx context.Context, id string) error

	// SoftDelete hides the contact and overwrites its PII with the given
	// placeholders.
	SoftDelete(ctx context.Context, id, scrubEmail, scrubName string) error
}

// ListFilter controls pagination and filtering for contact lists.
type ListFilter struct {
	Status   string
	Industry string
	Cluster  *int
	Search   string
	Limit    int
	Offset   int
}

// EnrichedFields is the atomic payload of a successful enrichment.
type EnrichedFields struct {
	Title          string
	Company        string
	Painpoint      string
	RelevanceScore float64
}

// DraftScrubber is the slice of the draft store needed for deletion: after
// a contact is scrubbed its drafts must stop pointing at the real address.
type DraftScrubber interface {
	ScrubContactEmail(ctx context.Context, contactID, replacement string) error
}
