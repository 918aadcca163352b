package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockSender records messages instead of delivering them. Used in mock mode
// and in tests.
type MockSender struct {
	mu   sync.Mutex
	sent []Message

	// FailNext makes the next Send return an error, simulating a provider
	// outage.
	FailNext bool
}

// NewMockSender creates an empty recording sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Name identifies the channel in logs and audit entries.
func (s *MockSender) Name() string { return "mock" }

// Send records the message and fabricates provider IDs.
func (s *MockSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNext {
		s.FailNext = false
		return nil, fmt.Errorf("mock send failure")
	}

	s.sent = append(s.sent, msg)

	threadID := msg.ThreadID
	if threadID == "" {
		threadID = "mock-thread-" + uuid.NewString()
	}
	return &SendResult{
		MessageID: "mock-msg-" + uuid.NewString(),
		ThreadID:  threadID,
	}, nil
}

// Sent returns a copy of everything recorded so far.
func (s *MockSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
