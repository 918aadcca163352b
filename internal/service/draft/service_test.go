package draft

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/llm"
	"github.com/ignite/outreach-engine/internal/pkg/distlock"
	"github.com/ignite/outreach-engine/internal/service/quota"
	"github.com/ignite/outreach-engine/internal/transport"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu     sync.Mutex
	drafts map[string]*domain.EmailDraft
}

func newMemRepo() *memRepo {
	return &memRepo{drafts: make(map[string]*domain.EmailDraft)}
}

func (r *memRepo) Get(_ context.Context, id string) (*domain.EmailDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, f ListFilter) ([]domain.EmailDraft, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailDraft
	for _, d := range r.drafts {
		if f.Status != "" && string(d.Status) != f.Status {
			continue
		}
		if f.ContactID != "" && d.ContactID != f.ContactID {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *memRepo) ListByContact(_ context.Context, contactID string) ([]domain.EmailDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailDraft
	for _, d := range r.drafts {
		if d.ContactID == contactID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) Create(_ context.Context, d *domain.EmailDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.drafts[d.ID] = &cp
	return nil
}

func (r *memRepo) UpdateContent(_ context.Context, id, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return ErrNotFound
	}
	d.Subject = subject
	d.Body = body
	d.Edited = true
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memRepo) Transition(_ context.Context, id string, from []domain.DraftStatus, to domain.DraftStatus, fields StatusFields) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return false, ErrNotFound
	}
	match := false
	for _, f := range from {
		if d.Status == f {
			match = true
			break
		}
	}
	if !match {
		return false, nil
	}
	d.Status = to
	if fields.ApprovedAt != nil {
		d.ApprovedAt = fields.ApprovedAt
	}
	if fields.ApprovedBy != nil {
		d.ApprovedBy = *fields.ApprovedBy
	}
	if fields.ApprovalNotes != nil {
		d.ApprovalNotes = *fields.ApprovalNotes
	}
	if fields.RejectionReason != nil {
		d.RejectionReason = *fields.RejectionReason
	}
	if fields.CancelReason != nil {
		d.CancelReason = *fields.CancelReason
	}
	if fields.MessageID != nil {
		d.MessageID = *fields.MessageID
	}
	if fields.ThreadID != nil {
		d.ThreadID = *fields.ThreadID
	}
	if fields.SentAt != nil {
		d.SentAt = fields.SentAt
	}
	if fields.ScheduledAt != nil {
		d.ScheduledAt = fields.ScheduledAt
	}
	d.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memRepo) ListScheduledDue(_ context.Context, now time.Time, limit int) ([]domain.EmailDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailDraft
	for _, d := range r.drafts {
		if d.Status == domain.DraftScheduled && d.ScheduledAt != nil && !d.ScheduledAt.After(now) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) ListSentBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.EmailDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailDraft
	for _, d := range r.drafts {
		if d.Status == domain.DraftSent && d.SentAt != nil && !d.SentAt.After(cutoff) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(*out[j].SentAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) CountFollowups(_ context.Context, originalDraftID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.drafts {
		if d.OriginalDraftID == originalDraftID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ScrubContactEmail(_ context.Context, contactID, replacement string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drafts {
		if d.ContactID == contactID {
			d.ToEmail = replacement
		}
	}
	return nil
}

type fakeContacts struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact
}

func (f *fakeContacts) Get(_ context.Context, id string) (*domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return nil, errors.New("contact not found")
	}
	cp := *c
	return &cp, nil
}

type fakeQuota struct {
	mu    sync.Mutex
	limit int
	used  int
}

func (q *fakeQuota) CanSend(_ context.Context, count int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used+count <= q.limit, nil
}

func (q *fakeQuota) Reserve(_ context.Context, count int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used+count > q.limit {
		return 0, quota.ErrExhausted
	}
	q.used += count
	return q.limit - q.used, nil
}

func (q *fakeQuota) Remaining(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit - q.used, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	tracked []domain.OperationKind
}

func (l *fakeLedger) Track(_ context.Context, kind domain.OperationKind, _ string, _ int, _, _ string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracked = append(l.tracked, kind)
	return 0.01, nil
}

func (l *fakeLedger) CheckBudget(_ context.Context) (bool, error) { return true, nil }

type fakeAuditor struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *fakeAuditor) Record(_ context.Context, e *domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *e)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) GenerateToken(_ context.Context, contactID string) (string, string, error) {
	token := "unsub_" + contactID + "_" + strings.Repeat("ab", 32)
	return token, "http://localhost:8000/unsubscribe/" + token, nil
}

// localLock adapts a process-local mutex to the distributed lock interface.
type localLock struct{ mu *sync.Mutex }

func (l *localLock) Acquire(_ context.Context) (bool, error) { return l.mu.TryLock(), nil }
func (l *localLock) Release(_ context.Context) error         { l.mu.Unlock(); return nil }

type localLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (p *localLocks) ForDraftSend(draftID string) distlock.DistLock {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	m, ok := p.locks[draftID]
	if !ok {
		m = &sync.Mutex{}
		p.locks[draftID] = m
	}
	return &localLock{mu: m}
}

type fakeProvider struct {
	draftFn func(llm.DraftRequest) (*llm.DraftResult, error)
}

func (p *fakeProvider) EnrichContact(context.Context, string, string) (*llm.EnrichmentResult, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) GenerateDraft(_ context.Context, req llm.DraftRequest) (*llm.DraftResult, error) {
	if p.draftFn != nil {
		return p.draftFn(req)
	}
	return &llm.DraftResult{
		Subject: "Quick question about " + req.Company,
		Body:    "Hi " + req.ContactName + ",\n\nI noticed your work in " + req.Industry + ".",
		Usage:   llm.Usage{Model: "gpt-4-turbo-preview", TotalTokens: 500},
	}, nil
}

func (p *fakeProvider) ClassifyReply(context.Context, llm.ClassifyRequest) (*llm.ClassificationResult, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) EmbedText(context.Context, string) (*llm.EmbeddingResult, error) {
	return nil, errors.New("not implemented")
}

type fixture struct {
	svc      *Service
	repo     *memRepo
	contacts *fakeContacts
	quota    *fakeQuota
	ledger   *fakeLedger
	auditor  *fakeAuditor
	sender   *transport.MockSender
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.FromEmail == "" {
		cfg.FromEmail = "sender@example.com"
	}
	if cfg.MaxSpamScore == 0 {
		cfg.MaxSpamScore = 5.0
	}
	f := &fixture{
		repo:     newMemRepo(),
		contacts: &fakeContacts{contacts: make(map[string]*domain.Contact)},
		quota:    &fakeQuota{limit: 10},
		ledger:   &fakeLedger{},
		auditor:  &fakeAuditor{},
		sender:   transport.NewMockSender(),
	}
	f.svc = NewService(f.repo, f.contacts, &fakeProvider{}, f.quota, f.ledger, f.auditor, fakeTokens{}, &localLocks{}, f.sender, cfg)
	// Tuesday 10:00 UTC, inside business hours.
	f.svc.now = func() time.Time { return time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) addContact(c *domain.Contact) {
	f.contacts.mu.Lock()
	defer f.contacts.mu.Unlock()
	f.contacts.contacts[c.ID] = c
}

func (f *fixture) addDraft(d *domain.EmailDraft) {
	if err := f.repo.Create(context.Background(), d); err != nil {
		panic(err)
	}
}

func testContact() *domain.Contact {
	return &domain.Contact{
		ID:             "c1",
		Email:          "jane@acme.com",
		Name:           "Jane Doe",
		Industry:       "SaaS",
		Company:        "Acme",
		Painpoint:      "manual onboarding",
		RelevanceScore: 9.0,
		Status:         domain.ContactEnriched,
	}
}

func approvedDraft(id, contactID string) *domain.EmailDraft {
	return &domain.EmailDraft{
		ID:        id,
		ContactID: contactID,
		ToEmail:   "jane@acme.com",
		FromEmail: "sender@example.com",
		Subject:   "Quick question about Acme",
		Body:      "Hi Jane, hope this finds you well.",
		Status:    domain.DraftApproved,
	}
}

func TestGenerateWithTemplate(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())

	tmpl := &Template{
		Subject: "Hello {{ name }}",
		Body:    "I saw {{ company }} is growing in {{ industry }}.",
	}
	d, err := f.svc.Generate(context.Background(), "c1", tmpl)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if d.Subject != "Hello Jane Doe" {
		t.Errorf("expected rendered subject, got %q", d.Subject)
	}
	if !strings.Contains(d.Body, "Acme is growing in SaaS") {
		t.Errorf("expected rendered body, got %q", d.Body)
	}
	if !strings.Contains(d.Body, "To unsubscribe, click: http://localhost:8000/unsubscribe/") {
		t.Errorf("expected unsubscribe footer, got %q", d.Body)
	}
	if d.Status != domain.DraftPendingApproval {
		t.Errorf("expected pending_approval, got %s", d.Status)
	}
	if d.UnsubscribeToken == "" {
		t.Error("expected unsubscribe token on draft")
	}
	if len(f.ledger.tracked) != 0 {
		t.Errorf("template rendering should not track cost, tracked %v", f.ledger.tracked)
	}
}

func TestGenerateWithModel(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())

	d, err := f.svc.Generate(context.Background(), "c1", nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if d.Subject != "Quick question about Acme" {
		t.Errorf("unexpected subject %q", d.Subject)
	}
	if len(f.ledger.tracked) != 1 || f.ledger.tracked[0] != domain.OpDraft {
		t.Errorf("expected one draft cost entry, got %v", f.ledger.tracked)
	}
}

func TestGenerateUnsubscribedContact(t *testing.T) {
	f := newFixture(t, Config{})
	c := testContact()
	c.Unsubscribed = true
	f.addContact(c)

	if _, err := f.svc.Generate(context.Background(), "c1", nil); !errors.Is(err, ErrUnsubscribed) {
		t.Fatalf("expected ErrUnsubscribed, got %v", err)
	}
}

func TestApproveIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	d := approvedDraft("d1", "c1")
	d.Status = domain.DraftPendingApproval
	f.addDraft(d)

	first, err := f.svc.Approve(context.Background(), "d1", "user-1", "looks good")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if first.Status != domain.DraftApproved || first.ApprovedBy != "user-1" {
		t.Fatalf("unexpected draft after approve: %+v", first)
	}

	second, err := f.svc.Approve(context.Background(), "d1", "user-2", "again")
	if err != nil {
		t.Fatalf("second Approve failed: %v", err)
	}
	if second.ApprovedBy != "user-1" {
		t.Errorf("second approve should be a no-op, got approver %q", second.ApprovedBy)
	}
}

func TestApproveSentDraft(t *testing.T) {
	f := newFixture(t, Config{})
	d := approvedDraft("d1", "c1")
	d.Status = domain.DraftSent
	f.addDraft(d)

	if _, err := f.svc.Approve(context.Background(), "d1", "user-1", ""); !errors.Is(err, ErrAlreadySent) {
		t.Fatalf("expected ErrAlreadySent, got %v", err)
	}
}

func TestCancelScheduledDraft(t *testing.T) {
	f := newFixture(t, Config{})
	d := approvedDraft("d1", "c1")
	d.Status = domain.DraftScheduled
	at := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	d.ScheduledAt = &at
	f.addDraft(d)

	if err := f.svc.Cancel(context.Background(), []string{"d1"}, "user-1", "campaign paused"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	got, _ := f.repo.Get(context.Background(), "d1")
	if got.Status != domain.DraftPendingApproval || got.CancelReason != "campaign paused" {
		t.Fatalf("unexpected draft after cancel: %+v", got)
	}

	// Cancelled drafts must never fire from the scheduler.
	due, err := f.svc.DispatchDueScheduled(context.Background(), 10)
	if err != nil {
		t.Fatalf("DispatchDueScheduled failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("cancelled draft dispatched: %+v", due)
	}
}

func TestCancelBatchWithSentDraft(t *testing.T) {
	f := newFixture(t, Config{})
	f.addDraft(approvedDraft("d1", "c1"))
	sent := approvedDraft("d2", "c1")
	sent.Status = domain.DraftSent
	f.addDraft(sent)

	err := f.svc.Cancel(context.Background(), []string{"d1", "d2"}, "user-1", "too late")
	if !errors.Is(err, ErrAlreadySent) {
		t.Fatalf("expected ErrAlreadySent, got %v", err)
	}
	// All-or-nothing: the approved draft must be untouched.
	got, _ := f.repo.Get(context.Background(), "d1")
	if got.Status != domain.DraftApproved {
		t.Errorf("batch with sent draft must cancel nothing, got %s", got.Status)
	}
}

func TestSendUnapprovedDraft(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())
	d := approvedDraft("d1", "c1")
	d.Status = domain.DraftPendingApproval
	f.addDraft(d)

	if _, err := f.svc.Send(context.Background(), "d1"); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
}

func TestSendAlreadySentDraft(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())
	d := approvedDraft("d1", "c1")
	d.Status = domain.DraftSent
	f.addDraft(d)

	if _, err := f.svc.Send(context.Background(), "d1"); !errors.Is(err, ErrAlreadySent) {
		t.Fatalf("expected ErrAlreadySent, got %v", err)
	}
}

func TestSendUnsubscribedContact(t *testing.T) {
	f := newFixture(t, Config{})
	c := testContact()
	c.Unsubscribed = true
	f.addContact(c)
	f.addDraft(approvedDraft("d1", "c1"))

	if _, err := f.svc.Send(context.Background(), "d1"); !errors.Is(err, ErrUnsubscribed) {
		t.Fatalf("expected ErrUnsubscribed, got %v", err)
	}
}

func TestSendSpamScoreExceeded(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())
	d := approvedDraft("d1", "c1")
	d.Subject = "URGENT WINNER"
	d.Body = "FREE CASH!!! BUY NOW, CLICK HERE, ACT NOW!!!"
	f.addDraft(d)

	_, err := f.svc.Send(context.Background(), "d1")
	if !errors.Is(err, ErrSpamScoreExceeded) {
		t.Fatalf("expected ErrSpamScoreExceeded, got %v", err)
	}
	got, _ := f.repo.Get(context.Background(), "d1")
	if got.Status != domain.DraftApproved {
		t.Errorf("spam-blocked draft should stay approved, got %s", got.Status)
	}
}

func TestSendQuotaExceeded(t *testing.T) {
	f := newFixture(t, Config{})
	f.quota.limit = 0
	f.addContact(testContact())
	f.addDraft(approvedDraft("d1", "c1"))

	out, err := f.svc.Send(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if out.Status != domain.SendStatusQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %s", out.Status)
	}
	if out.QuotaRemaining == nil || *out.QuotaRemaining != 0 {
		t.Errorf("expected quota remaining 0, got %v", out.QuotaRemaining)
	}
	got, _ := f.repo.Get(context.Background(), "d1")
	if got.Status != domain.DraftApproved {
		t.Errorf("quota-blocked draft should stay approved, got %s", got.Status)
	}
}

func TestSendOutsideBusinessHours(t *testing.T) {
	f := newFixture(t, Config{RespectBusinessHours: true})
	f.addContact(testContact())
	f.addDraft(approvedDraft("d1", "c1"))

	// Saturday 14:00 UTC.
	f.svc.now = func() time.Time { return time.Date(2025, 6, 14, 14, 0, 0, 0, time.UTC) }

	out, err := f.svc.Send(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if out.Status != domain.SendStatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", out.Status)
	}
	if out.ScheduledAt == nil {
		t.Fatal("expected scheduled time on outcome")
	}
	// Next business window is Monday June 16th, 09:00.
	want := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	if !out.ScheduledAt.Equal(want) {
		t.Errorf("expected scheduled at %v, got %v", want, *out.ScheduledAt)
	}
	got, _ := f.repo.Get(context.Background(), "d1")
	if got.Status != domain.DraftScheduled {
		t.Errorf("expected scheduled status, got %s", got.Status)
	}
	if len(f.sender.Sent()) != 0 {
		t.Error("deferred draft must not reach the transport")
	}
}

func TestSendSuccess(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())
	f.addDraft(approvedDraft("d1", "c1"))

	out, err := f.svc.Send(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if out.Status != domain.SendStatusSent {
		t.Fatalf("expected SENT, got %s", out.Status)
	}
	if out.MessageID == "" || out.ThreadID == "" {
		t.Errorf("expected provider ids, got %+v", out)
	}
	if out.QuotaRemaining == nil || *out.QuotaRemaining != 9 {
		t.Errorf("expected quota remaining 9, got %v", out.QuotaRemaining)
	}

	got, _ := f.repo.Get(context.Background(), "d1")
	if got.Status != domain.DraftSent {
		t.Errorf("expected sent status, got %s", got.Status)
	}
	if got.MessageID != out.MessageID || got.SentAt == nil {
		t.Errorf("expected message id and sent_at persisted, got %+v", got)
	}
	if len(f.sender.Sent()) != 1 {
		t.Fatalf("expected one delivery, got %d", len(f.sender.Sent()))
	}
}

func TestSendMockMode(t *testing.T) {
	f := newFixture(t, Config{MockMode: true})
	f.addContact(testContact())
	f.addDraft(approvedDraft("d1", "c1"))

	out, err := f.svc.Send(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if out.Status != domain.SendStatusMockSent {
		t.Fatalf("expected MOCK_SENT, got %s", out.Status)
	}
	if len(f.sender.Sent()) != 0 {
		t.Error("mock mode must not reach the transport")
	}
	got, _ := f.repo.Get(context.Background(), "d1")
	if got.Status != domain.DraftSent {
		t.Errorf("mock send still marks the draft sent, got %s", got.Status)
	}
}

func TestSendTransportFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())
	f.addDraft(approvedDraft("d1", "c1"))
	f.sender.FailNext = true

	out, err := f.svc.Send(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if out.Status != domain.SendStatusFailed {
		t.Fatalf("expected SEND_FAILED, got %s", out.Status)
	}
	if out.Error == "" {
		t.Error("expected error detail on outcome")
	}
	got, _ := f.repo.Get(context.Background(), "d1")
	if got.Status != domain.DraftSendFailed {
		t.Errorf("expected send_failed status, got %s", got.Status)
	}
}

func TestSendConcurrentSingleDelivery(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())
	f.addDraft(approvedDraft("d1", "c1"))

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.svc.Send(context.Background(), "d1")
			if err != nil {
				if !errors.Is(err, ErrAlreadySent) && !errors.Is(err, ErrSendInProgress) {
					t.Errorf("unexpected send error: %v", err)
				}
				return
			}
			if out.Status == domain.SendStatusSent {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if sent != 1 {
		t.Errorf("expected exactly one SENT outcome, got %d", sent)
	}
	if len(f.sender.Sent()) != 1 {
		t.Errorf("expected exactly one delivery, got %d", len(f.sender.Sent()))
	}
	if used := f.quota.used; used != 1 {
		t.Errorf("expected one quota slot consumed, got %d", used)
	}
}

func TestSendBulkRateLimit(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())
	for _, id := range []string{"d1", "d2", "d3"} {
		f.addDraft(approvedDraft(id, "c1"))
	}

	outcomes := f.svc.SendBulk(context.Background(), []string{"d1", "d2", "d3"}, 2)
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Status != domain.SendStatusSent || outcomes[1].Status != domain.SendStatusSent {
		t.Errorf("expected first two SENT, got %s, %s", outcomes[0].Status, outcomes[1].Status)
	}
	if outcomes[2].Status != domain.SendStatusRateLimited {
		t.Errorf("expected third RATE_LIMITED, got %s", outcomes[2].Status)
	}
}

func TestSendBulkQuotaExceededMidBatch(t *testing.T) {
	f := newFixture(t, Config{})
	f.quota.limit = 1
	f.addContact(testContact())
	f.addDraft(approvedDraft("d1", "c1"))
	f.addDraft(approvedDraft("d2", "c1"))

	outcomes := f.svc.SendBulk(context.Background(), []string{"d1", "d2"}, 0)
	if outcomes[0].Status != domain.SendStatusSent {
		t.Errorf("expected first SENT, got %s", outcomes[0].Status)
	}
	if outcomes[1].Status != domain.SendStatusQuotaExceeded {
		t.Errorf("expected second QUOTA_EXCEEDED, got %s", outcomes[1].Status)
	}
}

func TestSendBulkIntegrityErrorBecomesOutcome(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())
	d := approvedDraft("d1", "c1")
	d.Status = domain.DraftPendingApproval
	f.addDraft(d)
	f.addDraft(approvedDraft("d2", "c1"))

	outcomes := f.svc.SendBulk(context.Background(), []string{"d1", "d2"}, 0)
	if outcomes[0].Status != domain.SendStatusFailed || outcomes[0].Error == "" {
		t.Errorf("expected SEND_FAILED with error for unapproved draft, got %+v", outcomes[0])
	}
	if outcomes[1].Status != domain.SendStatusSent {
		t.Errorf("batch should continue past a failure, got %s", outcomes[1].Status)
	}
}

func TestAutoApprove(t *testing.T) {
	f := newFixture(t, Config{AutoApproveThreshold: 8.0})

	high := approvedDraft("d1", "c1")
	high.Status = domain.DraftPendingApproval
	high.QualityScore = 8.5
	f.addDraft(high)

	low := approvedDraft("d2", "c1")
	low.Status = domain.DraftPendingApproval
	low.QualityScore = 6.0
	f.addDraft(low)

	approved, err := f.svc.AutoApprove(context.Background())
	if err != nil {
		t.Fatalf("AutoApprove failed: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != "d1" {
		t.Fatalf("expected only d1 auto-approved, got %+v", approved)
	}
	if approved[0].ApprovalNotes != "Auto-approved (high quality score)" {
		t.Errorf("unexpected approval notes %q", approved[0].ApprovalNotes)
	}
	got, _ := f.repo.Get(context.Background(), "d2")
	if got.Status != domain.DraftPendingApproval {
		t.Errorf("low-quality draft should stay pending, got %s", got.Status)
	}
}

func TestDispatchDueScheduled(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())

	due := approvedDraft("d1", "c1")
	due.Status = domain.DraftScheduled
	dueAt := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	due.ScheduledAt = &dueAt
	f.addDraft(due)

	future := approvedDraft("d2", "c1")
	future.Status = domain.DraftScheduled
	futureAt := time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)
	future.ScheduledAt = &futureAt
	f.addDraft(future)

	outcomes, err := f.svc.DispatchDueScheduled(context.Background(), 10)
	if err != nil {
		t.Fatalf("DispatchDueScheduled failed: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != domain.SendStatusSent {
		t.Fatalf("expected one SENT outcome, got %+v", outcomes)
	}
	got, _ := f.repo.Get(context.Background(), "d2")
	if got.Status != domain.DraftScheduled {
		t.Errorf("future draft should stay scheduled, got %s", got.Status)
	}
}

func TestGenerateFollowup(t *testing.T) {
	f := newFixture(t, Config{SenderName: "Alex"})
	f.addContact(testContact())

	orig := approvedDraft("d1", "c1")
	orig.Status = domain.DraftSent
	orig.ThreadID = "thread-1"
	orig.MessageID = "msg-1"
	sentAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	orig.SentAt = &sentAt
	f.addDraft(orig)

	fu, err := f.svc.GenerateFollowup(context.Background(), "d1", nil, nil)
	if err != nil {
		t.Fatalf("GenerateFollowup failed: %v", err)
	}
	if fu.Subject != "Re: Quick question about Acme" {
		t.Errorf("unexpected subject %q", fu.Subject)
	}
	if fu.OriginalDraftID != "d1" || fu.FollowupSequence != 1 {
		t.Errorf("unexpected chain linkage: %+v", fu)
	}
	if fu.ThreadID != "thread-1" {
		t.Errorf("expected inherited thread id, got %q", fu.ThreadID)
	}
	if fu.Status != domain.DraftPendingApproval {
		t.Errorf("expected pending_approval, got %s", fu.Status)
	}
	if !strings.Contains(fu.Body, "Hi Jane Doe") || !strings.Contains(fu.Body, "Original message:") {
		t.Errorf("unexpected body %q", fu.Body)
	}

	// A follow-up of the follow-up still chains to the root.
	fuID := fu.ID
	if _, err := f.repo.Transition(context.Background(), fuID,
		[]domain.DraftStatus{domain.DraftPendingApproval}, domain.DraftSent,
		StatusFields{SentAt: &sentAt}); err != nil {
		t.Fatalf("mark followup sent: %v", err)
	}
	second, err := f.svc.GenerateFollowup(context.Background(), fuID, nil, nil)
	if err != nil {
		t.Fatalf("second GenerateFollowup failed: %v", err)
	}
	if second.OriginalDraftID != "d1" || second.FollowupSequence != 2 {
		t.Errorf("expected root chain with sequence 2, got %+v", second)
	}
	if strings.HasPrefix(second.Subject, "Re: Re:") {
		t.Errorf("subject must not stack Re: prefixes, got %q", second.Subject)
	}
}

func TestGenerateFollowupGuards(t *testing.T) {
	f := newFixture(t, Config{})
	c := testContact()
	f.addContact(c)

	unsent := approvedDraft("d1", "c1")
	f.addDraft(unsent)
	if _, err := f.svc.GenerateFollowup(context.Background(), "d1", nil, nil); !errors.Is(err, ErrNotSent) {
		t.Fatalf("expected ErrNotSent, got %v", err)
	}

	sent := approvedDraft("d2", "c1")
	sent.Status = domain.DraftSent
	sentAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sent.SentAt = &sentAt
	f.addDraft(sent)

	c.DoNotFollowup = true
	if _, err := f.svc.GenerateFollowup(context.Background(), "d2", nil, nil); !errors.Is(err, ErrDoNotFollowup) {
		t.Fatalf("expected ErrDoNotFollowup, got %v", err)
	}

	c.DoNotFollowup = false
	c.Unsubscribed = true
	if _, err := f.svc.GenerateFollowup(context.Background(), "d2", nil, nil); !errors.Is(err, ErrUnsubscribed) {
		t.Fatalf("expected ErrUnsubscribed, got %v", err)
	}
}

func TestScheduledFollowup(t *testing.T) {
	f := newFixture(t, Config{})
	f.addContact(testContact())

	orig := approvedDraft("d1", "c1")
	orig.Status = domain.DraftSent
	sentAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	orig.SentAt = &sentAt
	f.addDraft(orig)

	at := time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)
	fu, err := f.svc.GenerateFollowup(context.Background(), "d1", nil, &at)
	if err != nil {
		t.Fatalf("GenerateFollowup failed: %v", err)
	}
	if fu.Status != domain.DraftScheduled {
		t.Errorf("expected scheduled, got %s", fu.Status)
	}
	if fu.ScheduledAt == nil || !fu.ScheduledAt.Equal(at) {
		t.Errorf("expected scheduled_at %v, got %v", at, fu.ScheduledAt)
	}
}

func TestUpdateContentTerminalDraft(t *testing.T) {
	f := newFixture(t, Config{})
	d := approvedDraft("d1", "c1")
	d.Status = domain.DraftSent
	f.addDraft(d)

	if _, err := f.svc.UpdateContent(context.Background(), "d1", "new", "body"); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
}
