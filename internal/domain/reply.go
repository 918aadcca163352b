package domain

import "time"

// ReplyIntent is the closed label set for classified reply intent.
//
// The four outreach-driving labels (interested/maybe/decline/auto_reply) are
// canonical for state-machine triggers. IntentOther is the explicit
// "unclassified" value stored when classification fails or returns a label
// outside the set; it is never guessed into one of the canonical four.
type ReplyIntent string

const (
	IntentInterested ReplyIntent = "interested"
	IntentMaybe      ReplyIntent = "maybe"
	IntentDecline    ReplyIntent = "decline"
	IntentAutoReply  ReplyIntent = "auto_reply"
	IntentOther      ReplyIntent = "other"
)

// Reply is an inbound message attributed to a draft's thread.
type Reply struct {
	ID      string `json:"id" db:"id"`
	DraftID string `json:"draft_id" db:"draft_id"`

	FromEmail string `json:"from_email" db:"from_email"`
	Subject   string `json:"subject" db:"subject"`
	// Body is the HTML-stripped plain text. Classification always runs
	// against this field, never the original HTML.
	Body string `json:"body" db:"body"`

	Intent     ReplyIntent `json:"intent,omitempty" db:"intent"`
	Classified bool        `json:"classified" db:"classified"`
	Confidence float64     `json:"confidence" db:"confidence"`

	// AvailabilityText holds meeting-availability sentences extracted from
	// INTERESTED replies, when present.
	AvailabilityText string `json:"availability_text,omitempty" db:"availability_text"`

	CCRecipients    []string `json:"cc_recipients,omitempty" db:"cc_recipients"`
	Attachments     []string `json:"attachments,omitempty" db:"attachments"`
	HasInlineImages bool     `json:"has_inline_images" db:"has_inline_images"`

	ReceivedAt  time.Time  `json:"received_at" db:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}
