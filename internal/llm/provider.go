package llm

import (
	"context"
	"fmt"
)

// Usage reports token consumption for a single model call.
type Usage struct {
	Model        string `json:"model"`
	PromptTokens int    `json:"prompt_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
}

// EnrichmentResult is the structured profile a model produces for a contact.
type EnrichmentResult struct {
	Industry       string  `json:"industry"`
	Title          string  `json:"title"`
	Company        string  `json:"company"`
	Painpoint      string  `json:"painpoint"`
	RelevanceScore float64 `json:"relevance_score"`
	Usage          Usage   `json:"-"`
}

// DraftRequest carries everything a model needs to write one outreach email.
type DraftRequest struct {
	ContactName    string
	ContactEmail   string
	Industry       string
	Title          string
	Company        string
	Painpoint      string
	SenderName     string
	SenderCompany  string
	PreviousEmails []string // bodies of prior sends in the thread, oldest first
	FollowupNumber int      // 0 for the initial email
}

// DraftResult is a generated subject and body.
type DraftResult struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Usage   Usage  `json:"-"`
}

// ClassifyRequest carries an inbound reply for intent classification.
type ClassifyRequest struct {
	Subject      string
	Body         string
	OriginalBody string // the email they replied to, for context
}

// ClassificationResult is the model's read of a reply.
type ClassificationResult struct {
	Intent           string  `json:"intent"` // INTERESTED | MAYBE | DECLINE | AUTO_REPLY
	Confidence       float64 `json:"confidence"`
	AvailabilityText string  `json:"availability"`
	Usage            Usage   `json:"-"`
}

// EmbeddingResult is a text embedding plus the token usage it cost.
type EmbeddingResult struct {
	Vector []float64
	Usage  Usage
}

// Provider is the model-provider port. Adapters must return
// MalformedResponseError when the model answered but the answer could not
// be parsed, and TransientError for failures worth retrying.
type Provider interface {
	EnrichContact(ctx context.Context, name, email string) (*EnrichmentResult, error)
	GenerateDraft(ctx context.Context, req DraftRequest) (*DraftResult, error)
	ClassifyReply(ctx context.Context, req ClassifyRequest) (*ClassificationResult, error)
	EmbedText(ctx context.Context, text string) (*EmbeddingResult, error)
}

// MalformedResponseError means the model returned output that could not be
// parsed into the expected structure. Retrying may still help since model
// output is nondeterministic.
type MalformedResponseError struct {
	Operation string
	Raw       string
	Err       error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Operation, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TransientError wraps network failures and 5xx/429 provider responses.
// StatusCode is the HTTP status when one was received, zero otherwise.
type TransientError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s failure: %v", e.Operation, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
