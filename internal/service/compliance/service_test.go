package compliance_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/compliance"
)

// memStore is an in-memory token and contact store for unit testing.
type memStore struct {
	mu       sync.Mutex
	tokens   map[string]*domain.UnsubscribeToken // keyed by token string
	contacts map[string]*domain.Contact
}

func newMemStore() *memStore {
	return &memStore{
		tokens:   make(map[string]*domain.UnsubscribeToken),
		contacts: make(map[string]*domain.Contact),
	}
}

func (m *memStore) Insert(_ context.Context, t *domain.UnsubscribeToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.Token] = &cp
	return nil
}

func (m *memStore) GetByToken(_ context.Context, token string) (*domain.UnsubscribeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, compliance.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) MarkUsed(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ID == id {
			t.Used = true
			t.UsedAt = &at
			return nil
		}
	}
	return compliance.ErrTokenNotFound
}

func (m *memStore) MarkUnsubscribed(_ context.Context, contactID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[contactID]
	if !ok {
		return errors.New("contact not found")
	}
	c.Unsubscribed = true
	c.UnsubscribedAt = &at
	return nil
}

func (m *memStore) MarkDoNotFollowup(_ context.Context, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[contactID]
	if !ok {
		return errors.New("contact not found")
	}
	c.DoNotFollowup = true
	return nil
}

func (m *memStore) Get(_ context.Context, contactID string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[contactID]
	if !ok {
		return nil, errors.New("contact not found")
	}
	cp := *c
	return &cp, nil
}

func newService(store *memStore) *compliance.Service {
	return compliance.NewService(store, store, "https://outreach.example.com/")
}

func TestGenerateToken(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	token, url, err := svc.GenerateToken(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !strings.HasPrefix(token, "unsub_c-1_") {
		t.Fatalf("unexpected token format: %s", token)
	}
	if url != "https://outreach.example.com/unsubscribe/"+token {
		t.Fatalf("unexpected url: %s", url)
	}

	// Tokens are unique per issue.
	token2, _, err := svc.GenerateToken(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == token2 {
		t.Fatal("expected distinct tokens")
	}
}

func TestProcessUnsubscribe(t *testing.T) {
	store := newMemStore()
	store.contacts["c-1"] = &domain.Contact{ID: "c-1", Email: "jane@acme.com"}
	svc := newService(store)
	ctx := context.Background()

	token, _, err := svc.GenerateToken(ctx, "c-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if err := svc.ProcessUnsubscribe(ctx, token); err != nil {
		t.Fatalf("ProcessUnsubscribe: %v", err)
	}

	c := store.contacts["c-1"]
	if !c.Unsubscribed || c.UnsubscribedAt == nil {
		t.Fatal("expected contact marked unsubscribed with timestamp")
	}
	if !store.tokens[token].Used {
		t.Fatal("expected token consumed")
	}

	// Redeeming again is a silent no-op.
	if err := svc.ProcessUnsubscribe(ctx, token); err != nil {
		t.Fatalf("second redemption should not error: %v", err)
	}
}

func TestProcessUnsubscribeUnknownToken(t *testing.T) {
	svc := newService(newMemStore())
	err := svc.ProcessUnsubscribe(context.Background(), "unsub_x_deadbeef")
	if !errors.Is(err, compliance.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestCheckSendable(t *testing.T) {
	store := newMemStore()
	store.contacts["c-1"] = &domain.Contact{ID: "c-1", Email: "jane@acme.com"}
	store.contacts["c-2"] = &domain.Contact{ID: "c-2", Email: "bob@acme.com", Unsubscribed: true}
	svc := newService(store)
	ctx := context.Background()

	if err := svc.CheckSendable(ctx, "c-1"); err != nil {
		t.Fatalf("expected sendable, got %v", err)
	}
	if err := svc.CheckSendable(ctx, "c-2"); !errors.Is(err, compliance.ErrUnsubscribed) {
		t.Fatalf("expected ErrUnsubscribed, got %v", err)
	}
}

func TestExtractToken(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	token, _, _ := svc.GenerateToken(context.Background(), "42")

	body := "Please remove me.\n\n---\nTo unsubscribe, click: https://outreach.example.com/unsubscribe/" + token
	if got := compliance.ExtractToken(body); got != token {
		t.Fatalf("ExtractToken = %q, want %q", got, token)
	}
	if got := compliance.ExtractToken("no token here"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestContactIDFromToken(t *testing.T) {
	if got := compliance.ContactIDFromToken("unsub_abc-123_" + strings.Repeat("a", 64)); got != "abc-123" {
		t.Fatalf("got %q", got)
	}
	if got := compliance.ContactIDFromToken("garbage"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
