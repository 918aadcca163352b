package reply

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/llm"
)

// DraftStore is the slice of draft storage reply ingestion reads.
type DraftStore interface {
	Get(ctx context.Context, id string) (*domain.EmailDraft, error)
}

// ContactMarker applies reply-driven contact state changes.
type ContactMarker interface {
	MarkRepliedInterested(ctx context.Context, contactID string) error
}

// CostTracker meters classification calls.
type CostTracker interface {
	Track(ctx context.Context, kind domain.OperationKind, model string, tokens int, contactID, draftID string) (float64, error)
}

// IngestRequest is one inbound reply to attribute and classify.
type IngestRequest struct {
	DraftID    string    `json:"draft_id"`
	FromEmail  string    `json:"from_email"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// Service implements reply ingestion and classification.
type Service struct {
	repo     Repository
	drafts   DraftStore
	contacts ContactMarker
	provider llm.Provider
	ledger   CostTracker
	now      func() time.Time
}

// NewService creates a reply service.
func NewService(repo Repository, drafts DraftStore, contacts ContactMarker, provider llm.Provider, ledger CostTracker) *Service {
	return &Service{
		repo:     repo,
		drafts:   drafts,
		contacts: contacts,
		provider: provider,
		ledger:   ledger,
		now:      time.Now,
	}
}

// Get returns a single reply.
func (s *Service) Get(ctx context.Context, id string) (*domain.Reply, error) {
	return s.repo.Get(ctx, id)
}

// ListByDraft returns replies attributed to a draft.
func (s *Service) ListByDraft(ctx context.Context, draftID string) ([]domain.Reply, error) {
	return s.repo.ListByDraft(ctx, draftID)
}

// ListUnclassified returns replies still awaiting a successful
// classification.
func (s *Service) ListUnclassified(ctx context.Context, limit int) ([]domain.Reply, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListUnclassified(ctx, limit)
}

// HasReplyToDraft reports whether any reply exists for the draft.
func (s *Service) HasReplyToDraft(ctx context.Context, draftID string) (bool, error) {
	return s.repo.HasReplyToDraft(ctx, draftID)
}

// Ingest stores an inbound reply and classifies its intent. The reply is
// persisted even when classification fails; only the draft lookup can
// reject ingestion.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*domain.Reply, error) {
	d, err := s.drafts.Get(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}

	plain := StripHTML(req.Body)
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now().UTC()
	}

	r := &domain.Reply{
		ID:         uuid.New().String(),
		DraftID:    req.DraftID,
		FromEmail:  req.FromEmail,
		Subject:    req.Subject,
		Body:       plain,
		ReceivedAt: receivedAt,
	}
	s.classify(ctx, r, d)

	if err := s.repo.Insert(ctx, r); err != nil {
		return nil, err
	}

	if r.Intent == domain.IntentInterested {
		if err := s.contacts.MarkRepliedInterested(ctx, d.ContactID); err != nil {
			log.Printf("[Reply] Failed to mark contact %s replied-interested: %v", d.ContactID, err)
		}
	}

	log.Printf("[Reply] Parsed reply for draft %s with intent: %s", req.DraftID, r.Intent)
	return r, nil
}

// IngestBatch stores many replies, skipping individual failures.
func (s *Service) IngestBatch(ctx context.Context, reqs []IngestRequest) []domain.Reply {
	out := make([]domain.Reply, 0, len(reqs))
	for _, req := range reqs {
		r, err := s.Ingest(ctx, req)
		if err != nil {
			log.Printf("[Reply] Failed to ingest reply from %s: %v", req.FromEmail, err)
			continue
		}
		out = append(out, *r)
	}
	return out
}

// Reclassify re-runs classification against the stored plain text and
// overwrites the stored intent.
func (s *Service) Reclassify(ctx context.Context, replyID string) (*domain.Reply, error) {
	r, err := s.repo.Get(ctx, replyID)
	if err != nil {
		return nil, err
	}

	var d *domain.EmailDraft
	if r.DraftID != "" {
		d, _ = s.drafts.Get(ctx, r.DraftID)
	}
	s.classify(ctx, r, d)

	if err := s.repo.UpdateClassification(ctx, r.ID, r.Intent, r.Classified, r.Confidence, r.AvailabilityText); err != nil {
		return nil, err
	}

	if r.Intent == domain.IntentInterested && d != nil {
		if err := s.contacts.MarkRepliedInterested(ctx, d.ContactID); err != nil {
			log.Printf("[Reply] Failed to mark contact %s replied-interested: %v", d.ContactID, err)
		}
	}
	return r, nil
}

// classify fills the reply's intent fields in place. Failures downgrade to
// the unclassified "other" intent instead of propagating.
func (s *Service) classify(ctx context.Context, r *domain.Reply, d *domain.EmailDraft) {
	req := llm.ClassifyRequest{Subject: r.Subject, Body: r.Body}
	if d != nil {
		req.OriginalBody = d.Body
	}

	result, err := s.provider.ClassifyReply(ctx, req)
	if err != nil {
		log.Printf("[Reply] Failed to classify reply %s: %v", r.ID, err)
		r.Intent = domain.IntentOther
		r.Classified = false
		return
	}

	if s.ledger != nil {
		contactID := ""
		if d != nil {
			contactID = d.ContactID
		}
		if _, err := s.ledger.Track(ctx, domain.OpClassification, result.Usage.Model, result.Usage.TotalTokens, contactID, r.DraftID); err != nil {
			log.Printf("[Reply] Failed to track classification cost: %v", err)
		}
	}

	r.Intent = mapIntent(result.Intent)
	r.Classified = true
	r.Confidence = result.Confidence

	if r.Intent == domain.IntentInterested {
		r.AvailabilityText = result.AvailabilityText
		if r.AvailabilityText == "" {
			r.AvailabilityText = extractAvailability(r.Body)
		}
	}
}

// mapIntent folds the model's label into the closed intent set. Anything
// outside the set becomes IntentOther, never a guess.
func mapIntent(label string) domain.ReplyIntent {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "INTERESTED":
		return domain.IntentInterested
	case "MAYBE":
		return domain.IntentMaybe
	case "DECLINE":
		return domain.IntentDecline
	case "AUTO_REPLY":
		return domain.IntentAutoReply
	default:
		return domain.IntentOther
	}
}

var availabilityKeywords = []string{
	"available", "free", "time",
	"monday", "tuesday", "wednesday", "thursday", "friday",
	"morning", "afternoon", "evening", "schedule",
}

// extractAvailability pulls the first two sentences mentioning scheduling
// language out of a reply body.
func extractAvailability(body string) string {
	lower := strings.ToLower(body)
	found := false
	for _, kw := range availabilityKeywords {
		if strings.Contains(lower, kw) {
			found = true
			break
		}
	}
	if !found {
		return ""
	}

	var matched []string
	for _, sentence := range strings.Split(body, ".") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, kw := range availabilityKeywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, sentence)
				break
			}
		}
		if len(matched) == 2 {
			break
		}
	}
	return strings.Join(matched, ". ")
}
