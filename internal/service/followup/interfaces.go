package followup

import (
	"context"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/draft"
)

// DraftStore is the slice of draft storage the eligibility scan reads.
type DraftStore interface {
	Get(ctx context.Context, id string) (*domain.EmailDraft, error)
	ListSentBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EmailDraft, error)
	CountFollowups(ctx context.Context, originalDraftID string) (int, error)
}

// ContactStore looks up the contact behind a draft.
type ContactStore interface {
	Get(ctx context.Context, id string) (*domain.Contact, error)
}

// ReplyChecker reports whether any reply is attributed to a chain: the
// root draft or any follow-up chained to it.
type ReplyChecker interface {
	HasReplyInChain(ctx context.Context, rootDraftID string) (bool, error)
}

// Generator produces the actual follow-up draft. Implemented by the draft
// service, which owns templating, tokens, and lifecycle entry.
type Generator interface {
	GenerateFollowup(ctx context.Context, originalID string, tmpl *draft.Template, scheduleAt *time.Time) (*domain.EmailDraft, error)
}
