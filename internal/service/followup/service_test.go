package followup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/draft"
)

type memDrafts struct {
	mu     sync.Mutex
	drafts map[string]*domain.EmailDraft
}

func newMemDrafts() *memDrafts {
	return &memDrafts{drafts: make(map[string]*domain.EmailDraft)}
}

func (r *memDrafts) add(d *domain.EmailDraft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.drafts[d.ID] = &cp
}

func (r *memDrafts) Get(_ context.Context, id string) (*domain.EmailDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, draft.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memDrafts) ListSentBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.EmailDraft, error) {
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

func (r *memDrafts) CountFollowups(_ context.Context, originalDraftID string) (int, error) {
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

type fakeContacts struct {
	contacts map[string]*domain.Contact
}

func (f *fakeContacts) Get(_ context.Context, id string) (*domain.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return nil, errors.New("contact not found")
	}
	cp := *c
	return &cp, nil
}

type fakeReplies struct {
	store   *memDrafts
	replied map[string]bool
}

func (f *fakeReplies) HasReplyInChain(_ context.Context, rootID string) (bool, error) {
	if f.replied[rootID] {
		return true, nil
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, d := range f.store.drafts {
		if d.OriginalDraftID == rootID && f.replied[d.ID] {
			return true, nil
		}
	}
	return false, nil
}

// fakeGenerator fabricates follow-up drafts and registers them in the
// store so chain counting sees them, mirroring the real generator.
type fakeGenerator struct {
	store *memDrafts
	fail  bool
}

func (g *fakeGenerator) GenerateFollowup(ctx context.Context, originalID string, _ *draft.Template, scheduleAt *time.Time) (*domain.EmailDraft, error) {
	if g.fail {
		return nil, errors.New("generation failed")
	}
	orig, err := g.store.Get(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if orig.Status != domain.DraftSent {
		return nil, draft.ErrNotSent
	}
	root := orig.OriginalDraftID
	if root == "" {
		root = orig.ID
	}
	count, _ := g.store.CountFollowups(ctx, root)
	status := domain.DraftPendingApproval
	if scheduleAt != nil {
		status = domain.DraftScheduled
	}
	fu := &domain.EmailDraft{
		ID:               uuid.New().String(),
		ContactID:        orig.ContactID,
		Subject:          "Re: " + orig.Subject,
		Status:           status,
		ScheduledAt:      scheduleAt,
		OriginalDraftID:  root,
		FollowupSequence: count + 1,
	}
	g.store.add(fu)
	return fu, nil
}

type fixture struct {
	svc      *Service
	drafts   *memDrafts
	contacts *fakeContacts
	replies  *fakeReplies
	gen      *fakeGenerator
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		drafts:   newMemDrafts(),
		contacts: &fakeContacts{contacts: make(map[string]*domain.Contact)},
	}
	f.replies = &fakeReplies{store: f.drafts, replied: make(map[string]bool)}
	f.gen = &fakeGenerator{store: f.drafts}
	f.svc = NewService(f.drafts, f.contacts, f.replies, f.gen, cfg)
	f.svc.now = func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) addContact(c *domain.Contact) {
	f.contacts.contacts[c.ID] = c
}

func (f *fixture) addSentDraft(id, contactID string, sentDaysAgo int) *domain.EmailDraft {
	sentAt := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC).AddDate(0, 0, -sentDaysAgo)
	d := &domain.EmailDraft{
		ID:        id,
		ContactID: contactID,
		Subject:   "Quick question",
		Status:    domain.DraftSent,
		SentAt:    &sentAt,
	}
	f.drafts.add(d)
	return d
}

func TestCheckAndGenerate(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 8)

	out, err := f.svc.CheckAndGenerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckAndGenerate failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one follow-up, got %d", len(out))
	}
	if out[0].OriginalDraftID != "d1" || out[0].FollowupSequence != 1 {
		t.Errorf("unexpected chain linkage: %+v", out[0])
	}
	if out[0].Status != domain.DraftPendingApproval {
		t.Errorf("follow-up must enter at pending_approval, got %s", out[0].Status)
	}
}

func TestCheckAndGenerateSkipsRecentDrafts(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 3)

	out, err := f.svc.CheckAndGenerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckAndGenerate failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("recent draft must not get a follow-up, got %d", len(out))
	}
}

func TestCheckAndGenerateAnyReplySuppresses(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 8)
	// A decline is still a reply; silence alone triggers follow-up.
	f.replies.replied["d1"] = true

	out, err := f.svc.CheckAndGenerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckAndGenerate failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("replied draft must not get a follow-up, got %d", len(out))
	}
}

func TestCheckAndGenerateReplyOnRootSuppressesChain(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 3})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 30)

	fu1 := f.addSentDraft("fu1", "c1", 10)
	fu1.OriginalDraftID = "d1"
	fu1.FollowupSequence = 1
	f.drafts.add(fu1)

	// The decline landed on the original thread, not the latest link.
	f.replies.replied["d1"] = true

	out, err := f.svc.CheckAndGenerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckAndGenerate failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("a reply anywhere in the chain must stop follow-ups, got %+v", out)
	}
}

func TestScheduleFollowupReplyOnRootBlocks(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 3})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 30)

	fu1 := f.addSentDraft("fu1", "c1", 10)
	fu1.OriginalDraftID = "d1"
	fu1.FollowupSequence = 1
	f.drafts.add(fu1)

	f.replies.replied["d1"] = true

	if _, err := f.svc.ScheduleFollowup(context.Background(), "fu1", 3, nil); !errors.Is(err, ErrAlreadyReplied) {
		t.Fatalf("expected ErrAlreadyReplied, got %v", err)
	}
}

func TestCheckAndGenerateContactFlags(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "a@x.com", Unsubscribed: true})
	f.addContact(&domain.Contact{ID: "c2", Email: "b@x.com", DoNotFollowup: true})
	f.addContact(&domain.Contact{ID: "c3", Email: "c@x.com", RepliedInterested: true})
	f.addSentDraft("d1", "c1", 8)
	f.addSentDraft("d2", "c2", 8)
	f.addSentDraft("d3", "c3", 8)

	out, err := f.svc.CheckAndGenerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckAndGenerate failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("flagged contacts must not get follow-ups, got %+v", out)
	}
}

func TestCheckAndGenerateChainCap(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 30)

	fu1 := f.addSentDraft("fu1", "c1", 20)
	fu1.OriginalDraftID = "d1"
	fu1.FollowupSequence = 1
	f.drafts.add(fu1)

	fu2 := f.addSentDraft("fu2", "c1", 10)
	fu2.OriginalDraftID = "d1"
	fu2.FollowupSequence = 2
	f.drafts.add(fu2)

	out, err := f.svc.CheckAndGenerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckAndGenerate failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("capped chain must not grow, got %+v", out)
	}
}

func TestCheckAndGenerateOnlyChainTip(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 3})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 30)

	fu1 := f.addSentDraft("fu1", "c1", 10)
	fu1.OriginalDraftID = "d1"
	fu1.FollowupSequence = 1
	f.drafts.add(fu1)

	out, err := f.svc.CheckAndGenerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckAndGenerate failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one follow-up from the chain tip, got %d", len(out))
	}
	if out[0].OriginalDraftID != "d1" || out[0].FollowupSequence != 2 {
		t.Errorf("expected sequence 2 chained to root, got %+v", out[0])
	}
}

func TestCheckAndGenerateContinuesPastFailures(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 8)
	f.gen.fail = true

	out, err := f.svc.CheckAndGenerate(context.Background(), nil)
	if err != nil {
		t.Fatalf("CheckAndGenerate failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no follow-ups when generation fails, got %d", len(out))
	}
}

func TestScheduleFollowup(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 8)

	fu, err := f.svc.ScheduleFollowup(context.Background(), "d1", 5, nil)
	if err != nil {
		t.Fatalf("ScheduleFollowup failed: %v", err)
	}
	if fu.Status != domain.DraftScheduled {
		t.Errorf("expected scheduled, got %s", fu.Status)
	}
	want := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	if fu.ScheduledAt == nil || !fu.ScheduledAt.Equal(want) {
		t.Errorf("expected scheduled at %v, got %v", want, fu.ScheduledAt)
	}
}

func TestScheduleFollowupAlreadyReplied(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.addSentDraft("d1", "c1", 8)
	f.replies.replied["d1"] = true

	if _, err := f.svc.ScheduleFollowup(context.Background(), "d1", 5, nil); !errors.Is(err, ErrAlreadyReplied) {
		t.Fatalf("expected ErrAlreadyReplied, got %v", err)
	}
}

func TestScheduleFollowupUnsentDraft(t *testing.T) {
	f := newFixture(Config{DaysSinceSend: 7, MaxFollowups: 2})
	f.addContact(&domain.Contact{ID: "c1", Email: "jane@acme.com"})
	f.drafts.add(&domain.EmailDraft{ID: "d1", ContactID: "c1", Status: domain.DraftApproved})

	if _, err := f.svc.ScheduleFollowup(context.Background(), "d1", 5, nil); !errors.Is(err, draft.ErrNotSent) {
		t.Fatalf("expected ErrNotSent, got %v", err)
	}
}
