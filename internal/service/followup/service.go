package followup

import (
	"context"
	"log"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/draft"
)

const scanBatchSize = 500

// Config holds the follow-up policy.
type Config struct {
	// DaysSinceSend is how long a draft may sit unanswered before a
	// follow-up is due.
	DaysSinceSend int
	// MaxFollowups caps the chain length per original draft.
	MaxFollowups int
}

// Service runs follow-up eligibility and generation.
type Service struct {
	drafts    DraftStore
	contacts  ContactStore
	replies   ReplyChecker
	generator Generator
	cfg       Config
	now       func() time.Time
}

// NewService creates a follow-up service.
func NewService(drafts DraftStore, contacts ContactStore, replies ReplyChecker, generator Generator, cfg Config) *Service {
	if cfg.DaysSinceSend <= 0 {
		cfg.DaysSinceSend = 7
	}
	if cfg.MaxFollowups <= 0 {
		cfg.MaxFollowups = 2
	}
	return &Service{
		drafts:    drafts,
		contacts:  contacts,
		replies:   replies,
		generator: generator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CheckAndGenerate scans sent drafts past the waiting window and generates
// a follow-up for every eligible thread. Eligibility per thread: no reply
// on the latest link, contact still reachable, chain under the cap. A
// failure on one thread is logged and does not stop the scan.
func (s *Service) CheckAndGenerate(ctx context.Context, tmpl *draft.Template) ([]domain.EmailDraft, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.DaysSinceSend)
	candidates, err := s.drafts.ListSentBefore(ctx, cutoff, scanBatchSize)
	if err != nil {
		return nil, err
	}

	var generated []domain.EmailDraft
	for _, d := range candidates {
		ok, err := s.eligible(ctx, &d)
		if err != nil {
			return generated, err
		}
		if !ok {
			continue
		}

		fu, err := s.generator.GenerateFollowup(ctx, d.ID, tmpl, nil)
		if err != nil {
			log.Printf("[Followup] Failed to generate follow-up for draft %s: %v", d.ID, err)
			continue
		}
		generated = append(generated, *fu)
	}

	log.Printf("[Followup] Generated %d follow-up drafts from %d candidates", len(generated), len(candidates))
	return generated, nil
}

// eligible applies the per-thread predicate to one sent draft.
func (s *Service) eligible(ctx context.Context, d *domain.EmailDraft) (bool, error) {
	root := d.OriginalDraftID
	if root == "" {
		root = d.ID
	}

	count, err := s.drafts.CountFollowups(ctx, root)
	if err != nil {
		return false, err
	}
	// Only the latest link in a chain spawns the next one.
	if d.FollowupSequence != count {
		return false, nil
	}
	if count >= s.cfg.MaxFollowups {
		return false, nil
	}

	// A reply anywhere in the chain ends it, even when the latest link
	// itself went unanswered.
	replied, err := s.replies.HasReplyInChain(ctx, root)
	if err != nil {
		return false, err
	}
	if replied {
		return false, nil
	}

	c, err := s.contacts.Get(ctx, d.ContactID)
	if err != nil {
		log.Printf("[Followup] Skipping draft %s: contact lookup failed: %v", d.ID, err)
		return false, nil
	}
	if c.Unsubscribed || c.DoNotFollowup || c.RepliedInterested || c.Deleted {
		return false, nil
	}
	return true, nil
}

// ScheduleFollowup queues a single follow-up for a specific sent draft,
// deferred daysDelay days out instead of entering approval immediately.
func (s *Service) ScheduleFollowup(ctx context.Context, draftID string, daysDelay int, tmpl *draft.Template) (*domain.EmailDraft, error) {
	if daysDelay <= 0 {
		daysDelay = s.cfg.DaysSinceSend
	}

	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	root := d.OriginalDraftID
	if root == "" {
		root = d.ID
	}
	replied, err := s.replies.HasReplyInChain(ctx, root)
	if err != nil {
		return nil, err
	}
	if replied {
		return nil, ErrAlreadyReplied
	}

	at := s.now().UTC().AddDate(0, 0, daysDelay)
	return s.generator.GenerateFollowup(ctx, draftID, tmpl, &at)
}
