package draft

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/llm"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
	"github.com/ignite/outreach-engine/internal/service/quota"
	"github.com/ignite/outreach-engine/internal/service/schedule"
	"github.com/ignite/outreach-engine/internal/service/spamcheck"
	"github.com/ignite/outreach-engine/internal/transport"
)

// Config carries the send-time policy knobs for the draft service.
type Config struct {
	FromEmail            string
	SenderName           string
	SenderCompany        string
	MaxSpamScore         float64
	RespectBusinessHours bool
	MockMode             bool
	AutoApproveThreshold float64
}

// Service implements draft business logic. All public methods are safe for
// concurrent use if the collaborators are concurrency-safe.
type Service struct {
	repo     Repository
	contacts ContactStore
	provider llm.Provider
	quota    QuotaManager
	ledger   CostTracker
	auditor  Auditor
	tokens   TokenIssuer
	locks    LockProvider
	sender   transport.Sender
	cfg      Config
	now      func() time.Time
}

// NewService creates a draft service.
func NewService(repo Repository, contacts ContactStore, provider llm.Provider, q QuotaManager, ledger CostTracker, auditor Auditor, tokens TokenIssuer, locks LockProvider, sender transport.Sender, cfg Config) *Service {
	if cfg.AutoApproveThreshold == 0 {
		cfg.AutoApproveThreshold = 8.0
	}
	return &Service{
		repo:     repo,
		contacts: contacts,
		provider: provider,
		quota:    q,
		ledger:   ledger,
		auditor:  auditor,
		tokens:   tokens,
		locks:    locks,
		sender:   sender,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Get returns a single draft.
func (s *Service) Get(ctx context.Context, id string) (*domain.EmailDraft, error) {
	return s.repo.Get(ctx, id)
}

// List returns drafts matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.EmailDraft, int, error) {
	return s.repo.List(ctx, f)
}

// ListPending returns drafts awaiting approval.
func (s *Service) ListPending(ctx context.Context, limit int) ([]domain.EmailDraft, error) {
	if limit <= 0 {
		limit = 100
	}
	out, _, err := s.repo.List(ctx, ListFilter{Status: string(domain.DraftPendingApproval), Limit: limit})
	return out, err
}

// Generate creates a personalized draft for a contact. With a template the
// content is rendered locally; without one the model writes it. Every draft
// carries an unsubscribe footer and starts in pending approval.
func (s *Service) Generate(ctx context.Context, contactID string, tmpl *Template) (*domain.EmailDraft, error) {
	c, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if c.Unsubscribed {
		return nil, ErrUnsubscribed
	}

	var subject, body string
	if tmpl != nil {
		subject, body, err = tmpl.render(c)
		if err != nil {
			return nil, err
		}
	} else {
		result, err := s.provider.GenerateDraft(ctx, llm.DraftRequest{
			ContactName:   c.Name,
			ContactEmail:  c.Email,
			Industry:      c.Industry,
			Title:         c.Title,
			Company:       c.Company,
			Painpoint:     c.Painpoint,
			SenderName:    s.cfg.SenderName,
			SenderCompany: s.cfg.SenderCompany,
		})
		if err != nil {
			return nil, fmt.Errorf("generate draft for contact %s: %w", contactID, err)
		}
		subject, body = result.Subject, result.Body

		if s.ledger != nil {
			if _, err := s.ledger.Track(ctx, domain.OpDraft, result.Usage.Model, result.Usage.TotalTokens, contactID, ""); err != nil {
				log.Printf("[Draft] Failed to track cost for contact %s: %v", contactID, err)
			}
		}
	}

	token, url, err := s.tokens.GenerateToken(ctx, contactID)
	if err != nil {
		return nil, err
	}
	body += "\n\n---\nTo unsubscribe, click: " + url

	now := s.now().UTC()
	d := &domain.EmailDraft{
		ID:               uuid.New().String(),
		ContactID:        contactID,
		ToEmail:          c.Email,
		FromEmail:        s.cfg.FromEmail,
		Subject:          subject,
		Body:             body,
		Status:           domain.DraftPendingApproval,
		QualityScore:     qualityScore(c, subject, body),
		UnsubscribeToken: token,
		UnsubscribeURL:   url,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.audit(ctx, d.ID, "generate", "", string(domain.DraftPendingApproval), "")
	log.Printf("[Draft] Generated draft %s for contact %s", d.ID, contactID)
	return d, nil
}

// BulkGenerateResult summarizes a bulk generation run.
type BulkGenerateResult struct {
	Drafts []domain.EmailDraft `json:"drafts"`
	Failed []string            `json:"failed,omitempty"`
}

// GenerateBulk creates drafts for many contacts, skipping failures.
func (s *Service) GenerateBulk(ctx context.Context, contactIDs []string, tmpl *Template) (*BulkGenerateResult, error) {
	result := &BulkGenerateResult{}
	for _, id := range contactIDs {
		d, err := s.Generate(ctx, id, tmpl)
		if err != nil {
			log.Printf("[Draft] Failed to generate draft for contact %s: %v", id, err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Drafts = append(result.Drafts, *d)
	}
	return result, nil
}

// qualityScore rates a draft for auto-approval: the contact's relevance
// minus the draft's spam score, clamped to [0, 10].
func qualityScore(c *domain.Contact, subject, body string) float64 {
	q := c.RelevanceScore - spamcheck.Score(subject, body)
	if q < 0 {
		return 0
	}
	if q > 10 {
		return 10
	}
	return q
}

// GenerateFollowup chains a new draft onto a sent draft's thread. The
// follow-up references the chain root, carries the next sequence number,
// and re-enters the lifecycle at pending approval unless scheduleAt defers
// it as a scheduled send.
func (s *Service) GenerateFollowup(ctx context.Context, originalID string, tmpl *Template, scheduleAt *time.Time) (*domain.EmailDraft, error) {
	orig, err := s.repo.Get(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if orig.Status != domain.DraftSent {
		return nil, ErrNotSent
	}

	c, err := s.contacts.Get(ctx, orig.ContactID)
	if err != nil {
		return nil, err
	}
	if c.Unsubscribed {
		return nil, ErrUnsubscribed
	}
	if c.DoNotFollowup {
		return nil, ErrDoNotFollowup
	}

	root := orig.OriginalDraftID
	if root == "" {
		root = orig.ID
	}
	existing, err := s.repo.CountFollowups(ctx, root)
	if err != nil {
		return nil, err
	}
	sequence := existing + 1

	if tmpl == nil {
		tmpl = defaultFollowupTemplate(orig, sequence, s.cfg.SenderName)
	}
	subject, body, err := tmpl.render(c)
	if err != nil {
		return nil, err
	}

	token, url, err := s.tokens.GenerateToken(ctx, orig.ContactID)
	if err != nil {
		return nil, err
	}
	body += "\n\n---\nTo unsubscribe, click: " + url

	status := domain.DraftPendingApproval
	if scheduleAt != nil {
		status = domain.DraftScheduled
	}

	now := s.now().UTC()
	d := &domain.EmailDraft{
		ID:               uuid.New().String(),
		ContactID:        orig.ContactID,
		ToEmail:          c.Email,
		FromEmail:        s.cfg.FromEmail,
		Subject:          subject,
		Body:             body,
		Status:           status,
		QualityScore:     qualityScore(c, subject, body),
		ThreadID:         orig.ThreadID,
		ScheduledAt:      scheduleAt,
		UnsubscribeToken: token,
		UnsubscribeURL:   url,
		OriginalDraftID:  root,
		FollowupSequence: sequence,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.audit(ctx, d.ID, "generate_followup", "", string(status), "")
	log.Printf("[Draft] Generated follow-up #%d for draft %s (contact %s)", sequence, originalID, orig.ContactID)
	return d, nil
}

// defaultFollowupTemplate builds the stock follow-up copy. The first
// follow-up quotes the original; later ones are a short last touch.
func defaultFollowupTemplate(orig *domain.EmailDraft, sequence int, senderName string) *Template {
	subject := orig.Subject
	if !strings.HasPrefix(subject, "Re: ") {
		subject = "Re: " + subject
	}
	if senderName == "" {
		senderName = "The team"
	}

	if sequence <= 1 {
		quote := orig.Body
		if len(quote) > 200 {
			quote = quote[:200]
		}
		return &Template{
			Subject: subject,
			Body: "Hi {{ name }},\n\n" +
				"I wanted to follow up on my previous email.\n\n" +
				"Would you have 15 minutes this week to discuss?\n\n" +
				"Best regards,\n" + senderName + "\n\n" +
				"---\nOriginal message:\n" + quote + "...",
		}
	}
	return &Template{
		Subject: subject,
		Body: "Hi {{ name }},\n\n" +
			"I know you're busy, so I'll keep this brief.\n\n" +
			"I'd love to share how we could help {{ company }}.\n\n" +
			"If you're not interested, just let me know and I won't follow up again.\n\n" +
			"Best,\n" + senderName,
	}
}

// UpdateContent edits a draft's subject and body. Terminal drafts are
// immutable.
func (s *Service) UpdateContent(ctx context.Context, id, subject, body string) (*domain.EmailDraft, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.IsTerminal() {
		return nil, ErrTerminalStatus
	}
	if err := s.repo.UpdateContent(ctx, id, subject, body); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Approve marks a draft ready to send. Approving an approved draft is a
// no-op; approving a sent draft is an error.
func (s *Service) Approve(ctx context.Context, id, userID, notes string) (*domain.EmailDraft, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch d.Status {
	case domain.DraftApproved:
		log.Printf("[Draft] Draft %s already approved", id)
		return d, nil
	case domain.DraftSent:
		return nil, ErrAlreadySent
	}

	now := s.now().UTC()
	ok, err := s.repo.Transition(ctx, id,
		[]domain.DraftStatus{domain.DraftPendingApproval, domain.DraftRejected, domain.DraftScheduled, domain.DraftSendFailed},
		domain.DraftApproved,
		StatusFields{ApprovedAt: &now, ApprovedBy: &userID, ApprovalNotes: &notes})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadySent
	}

	s.audit(ctx, id, "approve_draft", string(d.Status), string(domain.DraftApproved), notes)
	log.Printf("[Draft] Draft %s approved by user %s", id, userID)
	return s.repo.Get(ctx, id)
}

// Reject declines a draft. Sent drafts cannot be rejected.
func (s *Service) Reject(ctx context.Context, id, userID, reason string) (*domain.EmailDraft, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DraftSent {
		return nil, ErrAlreadySent
	}

	ok, err := s.repo.Transition(ctx, id,
		[]domain.DraftStatus{domain.DraftPendingApproval, domain.DraftApproved, domain.DraftScheduled, domain.DraftSendFailed},
		domain.DraftRejected,
		StatusFields{RejectionReason: &reason})
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.repo.Get(ctx, id)
	}

	s.audit(ctx, id, "reject_draft", string(d.Status), string(domain.DraftRejected), reason)
	log.Printf("[Draft] Draft %s rejected by user %s: %s", id, userID, reason)
	return s.repo.Get(ctx, id)
}

// Cancel reverts drafts to pending approval, recording the reason. A
// cancelled scheduled send never fires. The batch is all-or-nothing: if
// any draft is already sent, nothing is cancelled.
func (s *Service) Cancel(ctx context.Context, ids []string, actorID, reason string) error {
	for _, id := range ids {
		d, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if d.Status == domain.DraftSent {
			return fmt.Errorf("cancel draft %s: %w", id, ErrAlreadySent)
		}
	}

	for _, id := range ids {
		d, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		ok, err := s.repo.Transition(ctx, id,
			[]domain.DraftStatus{domain.DraftPendingApproval, domain.DraftApproved, domain.DraftScheduled, domain.DraftRejected, domain.DraftSendFailed},
			domain.DraftPendingApproval,
			StatusFields{CancelReason: &reason})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cancel draft %s: %w", id, ErrAlreadySent)
		}
		s.audit(ctx, id, "cancel", string(d.Status), string(domain.DraftPendingApproval), reason)
	}
	log.Printf("[Draft] Cancelled %d drafts by user %s", len(ids), actorID)
	return nil
}

// BulkApproveResult summarizes a bulk approval.
type BulkApproveResult struct {
	Approved        []string `json:"approved"`
	AlreadyApproved []string `json:"already_approved"`
	Failed          []string `json:"failed"`
}

// BulkApprove approves many drafts, collecting per-draft outcomes.
func (s *Service) BulkApprove(ctx context.Context, ids []string, userID string) *BulkApproveResult {
	result := &BulkApproveResult{}
	for _, id := range ids {
		d, err := s.repo.Get(ctx, id)
		if err == nil && d.Status == domain.DraftApproved {
			result.AlreadyApproved = append(result.AlreadyApproved, id)
			continue
		}
		if _, err := s.Approve(ctx, id, userID, ""); err != nil {
			log.Printf("[Draft] Failed to approve draft %s: %v", id, err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Approved = append(result.Approved, id)
	}
	log.Printf("[Draft] Bulk approved %d drafts by user %s", len(result.Approved), userID)
	return result
}

// AutoApprove approves pending drafts whose quality score clears the
// configured threshold.
func (s *Service) AutoApprove(ctx context.Context) ([]domain.EmailDraft, error) {
	pending, err := s.ListPending(ctx, 0)
	if err != nil {
		return nil, err
	}

	var approved []domain.EmailDraft
	for _, d := range pending {
		if d.QualityScore < s.cfg.AutoApproveThreshold {
			continue
		}
		out, err := s.Approve(ctx, d.ID, "system", "Auto-approved (high quality score)")
		if err != nil {
			log.Printf("[Draft] Failed to auto-approve draft %s: %v", d.ID, err)
			continue
		}
		approved = append(approved, *out)
	}
	log.Printf("[Draft] Auto-approved %d high-quality drafts", len(approved))
	return approved, nil
}

// Send runs one draft through the guarded send path. The expected
// flow-control refusals (quota, business hours) come back as outcomes;
// integrity violations (unapproved, already sent, opted out, spammy) come
// back as errors.
func (s *Service) Send(ctx context.Context, id string) (*domain.SendOutcome, error) {
	lock := s.locks.ForDraftSend(id)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire send lock: %w", err)
	}
	if !acquired {
		return nil, ErrSendInProgress
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.Printf("[Draft] Failed to release send lock for %s: %v", id, err)
		}
	}()

	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DraftSent {
		return nil, ErrAlreadySent
	}
	if d.Status != domain.DraftApproved {
		return nil, ErrNotApproved
	}

	c, err := s.contacts.Get(ctx, d.ContactID)
	if err != nil {
		return nil, err
	}
	if c.Unsubscribed {
		return nil, ErrUnsubscribed
	}

	if score := spamcheck.Score(d.Subject, d.Body); score > s.cfg.MaxSpamScore {
		return nil, fmt.Errorf("%w: %.1f > %.1f", ErrSpamScoreExceeded, score, s.cfg.MaxSpamScore)
	}

	ok, err := s.quota.CanSend(ctx, 1)
	if err != nil {
		return nil, err
	}
	if !ok {
		remaining, _ := s.quota.Remaining(ctx)
		return &domain.SendOutcome{
			DraftID:        id,
			Status:         domain.SendStatusQuotaExceeded,
			QuotaRemaining: &remaining,
		}, nil
	}

	if s.cfg.RespectBusinessHours {
		local := schedule.InContactZone(s.now(), c.Timezone)
		if !schedule.IsBusinessHours(local) {
			at := schedule.NextBusinessTime(local)
			if _, err := s.repo.Transition(ctx, id,
				[]domain.DraftStatus{domain.DraftApproved}, domain.DraftScheduled,
				StatusFields{ScheduledAt: &at}); err != nil {
				return nil, err
			}
			s.audit(ctx, id, "schedule", string(domain.DraftApproved), string(domain.DraftScheduled), "")
			return &domain.SendOutcome{DraftID: id, Status: domain.SendStatusScheduled, ScheduledAt: &at}, nil
		}
	}

	return s.deliver(ctx, d)
}

// deliver claims the draft, reserves quota, and pushes the message through
// the transport. The sent claim happens before the transport call so a
// crashed or racing process can never produce a second delivery.
func (s *Service) deliver(ctx context.Context, d *domain.EmailDraft) (*domain.SendOutcome, error) {
	remaining, err := s.quota.Reserve(ctx, 1)
	if err != nil {
		if errors.Is(err, quota.ErrExhausted) {
			zero := 0
			return &domain.SendOutcome{
				DraftID:        d.ID,
				Status:         domain.SendStatusQuotaExceeded,
				QuotaRemaining: &zero,
			}, nil
		}
		return nil, err
	}

	now := s.now().UTC()
	claimed, err := s.repo.Transition(ctx, d.ID,
		[]domain.DraftStatus{domain.DraftApproved}, domain.DraftSent,
		StatusFields{SentAt: &now})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadySent
	}

	status := domain.SendStatusSent
	var messageID, threadID string
	if s.cfg.MockMode || s.sender == nil {
		status = domain.SendStatusMockSent
		messageID = "mock_" + d.ID
		threadID = "thread_" + d.ID
	} else {
		msg := transport.Message{
			From:           d.FromEmail,
			To:             d.ToEmail,
			Subject:        d.Subject,
			Body:           d.Body,
			ThreadID:       d.ThreadID,
			UnsubscribeURL: d.UnsubscribeURL,
		}
		if d.IsFollowup() {
			if orig, err := s.repo.Get(ctx, d.OriginalDraftID); err == nil {
				msg.InReplyTo = orig.MessageID
				if msg.ThreadID == "" {
					msg.ThreadID = orig.ThreadID
				}
			}
		}

		result, err := s.sender.Send(ctx, msg)
		if err != nil {
			log.Printf("[Draft] Failed to send draft %s: %v", d.ID, err)
			if _, terr := s.repo.Transition(ctx, d.ID,
				[]domain.DraftStatus{domain.DraftSent}, domain.DraftSendFailed,
				StatusFields{}); terr != nil {
				log.Printf("[Draft] Failed to mark draft %s send_failed: %v", d.ID, terr)
			}
			s.audit(ctx, d.ID, "send_failed", string(domain.DraftApproved), string(domain.DraftSendFailed), err.Error())
			return &domain.SendOutcome{DraftID: d.ID, Status: domain.SendStatusFailed, Error: err.Error()}, nil
		}
		messageID, threadID = result.MessageID, result.ThreadID
	}

	if _, err := s.repo.Transition(ctx, d.ID,
		[]domain.DraftStatus{domain.DraftSent}, domain.DraftSent,
		StatusFields{MessageID: &messageID, ThreadID: &threadID}); err != nil {
		log.Printf("[Draft] Failed to record provider ids for draft %s: %v", d.ID, err)
	}

	s.audit(ctx, d.ID, "send", string(domain.DraftApproved), string(domain.DraftSent), "")
	log.Printf("[Draft] Email sent: draft %s to %s (quota remaining: %d)",
		d.ID, logger.RedactEmail(d.ToEmail), remaining)

	return &domain.SendOutcome{
		DraftID:        d.ID,
		Status:         status,
		MessageID:      messageID,
		ThreadID:       threadID,
		QuotaRemaining: &remaining,
	}, nil
}

// SendBulk sends many drafts in order. rateLimit caps how many leave in
// this call; zero means no cap. Integrity errors on one draft become
// SEND_FAILED outcomes instead of aborting the batch.
func (s *Service) SendBulk(ctx context.Context, ids []string, rateLimit int) []domain.SendOutcome {
	outcomes := make([]domain.SendOutcome, 0, len(ids))
	sent := 0

	for _, id := range ids {
		if rateLimit > 0 && sent >= rateLimit {
			outcomes = append(outcomes, domain.SendOutcome{DraftID: id, Status: domain.SendStatusRateLimited})
			continue
		}

		ok, err := s.quota.CanSend(ctx, 1)
		if err == nil && !ok {
			remaining, _ := s.quota.Remaining(ctx)
			outcomes = append(outcomes, domain.SendOutcome{
				DraftID:        id,
				Status:         domain.SendStatusQuotaExceeded,
				QuotaRemaining: &remaining,
			})
			continue
		}

		outcome, err := s.Send(ctx, id)
		if err != nil {
			log.Printf("[Draft] Failed to send draft %s: %v", id, err)
			outcomes = append(outcomes, domain.SendOutcome{DraftID: id, Status: domain.SendStatusFailed, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, *outcome)
		if outcome.Status == domain.SendStatusSent || outcome.Status == domain.SendStatusMockSent {
			sent++
		}
	}
	return outcomes
}

// ListDue returns scheduled drafts whose send window has arrived,
// without dispatching them.
func (s *Service) ListDue(ctx context.Context, limit int) ([]domain.EmailDraft, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListScheduledDue(ctx, s.now().UTC(), limit)
}

// DispatchDueScheduled re-releases scheduled drafts whose window has
// arrived: each is moved back to approved and pushed through the full
// send path again.
func (s *Service) DispatchDueScheduled(ctx context.Context, limit int) ([]domain.SendOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	due, err := s.repo.ListScheduledDue(ctx, s.now().UTC(), limit)
	if err != nil {
		return nil, err
	}

	var outcomes []domain.SendOutcome
	for _, d := range due {
		ok, err := s.repo.Transition(ctx, d.ID,
			[]domain.DraftStatus{domain.DraftScheduled}, domain.DraftApproved,
			StatusFields{})
		if err != nil {
			return outcomes, err
		}
		if !ok {
			continue
		}
		outcome, err := s.Send(ctx, d.ID)
		if err != nil {
			log.Printf("[Draft] Failed to dispatch scheduled draft %s: %v", d.ID, err)
			outcomes = append(outcomes, domain.SendOutcome{DraftID: d.ID, Status: domain.SendStatusFailed, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, *outcome)
	}
	return outcomes, nil
}

// ScrubContactEmail overwrites to_email across a contact's drafts. Called
// by the contact service on deletion.
func (s *Service) ScrubContactEmail(ctx context.Context, contactID, replacement string) error {
	return s.repo.ScrubContactEmail(ctx, contactID, replacement)
}

func (s *Service) audit(ctx context.Context, draftID, action, oldStatus, newStatus, notes string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Record(ctx, &domain.AuditEntry{
		ID:         uuid.New().String(),
		EntityType: "draft",
		EntityID:   draftID,
		Action:     action,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Notes:      notes,
		CreatedAt:  s.now().UTC(),
	})
}
