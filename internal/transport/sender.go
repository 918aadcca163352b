package transport

import "context"

// Message is one outbound email, fully rendered.
type Message struct {
	From           string
	To             string
	Subject        string
	Body           string // plain text
	ThreadID       string // provider thread to continue, empty for a new thread
	InReplyTo      string // Message-ID header of the prior send, for threading
	UnsubscribeURL string // added as a List-Unsubscribe header when set
}

// SendResult carries the provider identifiers of a delivered message.
type SendResult struct {
	MessageID string
	ThreadID  string
}

// Sender delivers a single message. Implementations return an error only
// when delivery failed; retry policy belongs to the caller.
type Sender interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
	Name() string
}
