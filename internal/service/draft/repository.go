package draft

import (
	"context"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Repository defines the data access contract for email drafts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single draft. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.EmailDraft, error)

	// List returns drafts matching the filter, ordered by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.EmailDraft, int, error)

	// ListByContact returns all drafts for a contact, oldest first.
	ListByContact(ctx context.Context, contactID string) ([]domain.EmailDraft, error)

	// Create inserts a new draft.
	Create(ctx context.Context, d *domain.EmailDraft) error

	// UpdateContent replaces subject and body and marks the draft edited.
	UpdateContent(ctx context.Context, id, subject, body string) error

	// Transition atomically moves the draft from one of the given statuses
	// to the target status, applying fields. It reports false when the
	// draft was not in any of the from statuses, which is how a lost send
	// race surfaces.
	Transition(ctx context.Context, id string, from []domain.DraftStatus, to domain.DraftStatus, fields StatusFields) (bool, error)

	// ListScheduledDue returns scheduled drafts whose scheduled_at has
	// passed, oldest first.
	ListScheduledDue(ctx context.Context, now time.Time, limit int) ([]domain.EmailDraft, error)

	// ListSentBefore returns sent drafts whose sent_at is at or before
	// cutoff, oldest first. Feeds follow-up eligibility scans.
	ListSentBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EmailDraft, error)

	// CountFollowups returns how many drafts reference originalDraftID as
	// their follow-up root.
	CountFollowups(ctx context.Context, originalDraftID string) (int, error)

	// ScrubContactEmail overwrites to_email on every draft of a contact.
	// Used when a contact is deleted.
	ScrubContactEmail(ctx context.Context, contactID, replacement string) error
}

// ListFilter controls pagination and filtering for draft lists.
type ListFilter struct {
	Status    string
	ContactID string
	Limit     int
	Offset    int
}

// StatusFields carries the columns written alongside a status transition.
// Pointers distinguish "leave alone" from "set to zero value".
type StatusFields struct {
	ApprovedAt      *time.Time
	ApprovedBy      *string
	ApprovalNotes   *string
	RejectionReason *string
	CancelReason    *string
	MessageID       *string
	ThreadID        *string
	SentAt          *time.Time
	ScheduledAt     *time.Time
}
