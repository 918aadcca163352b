package domain

import "time"

// OperationKind enumerates the priced model-provider operations.
type OperationKind string

const (
	OpEnrichment     OperationKind = "enrichment"
	OpEmbedding      OperationKind = "embedding"
	OpDraft          OperationKind = "draft"
	OpClassification OperationKind = "reply_classification"
)

// CostLogEntry is one priced operation. Entries are append-only: a tracked
// operation is durably logged before its cost is returned to the caller.
type CostLogEntry struct {
	ID         string        `json:"id" db:"id"`
	Kind       OperationKind `json:"operation_type" db:"operation_type"`
	Model      string        `json:"model" db:"model"`
	TokensUsed int           `json:"tokens_used" db:"tokens_used"`
	Cost       float64       `json:"cost" db:"cost"`
	ContactID  string        `json:"contact_id,omitempty" db:"contact_id"`
	DraftID    string        `json:"draft_id,omitempty" db:"draft_id"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// QuotaRecord tracks daily send usage for one sender identity. Records are
// keyed by (sender, UTC calendar day), created lazily on first use per day,
// and never mutated once the day has passed; rollover happens by dating a
// fresh record, not by resetting counters.
type QuotaRecord struct {
	ID         string    `json:"id" db:"id"`
	Sender     string    `json:"sender" db:"sender"`
	Date       time.Time `json:"date" db:"date"` // midnight UTC of the day
	EmailsSent int       `json:"emails_sent" db:"emails_sent"`
	DailyLimit int       `json:"quota_limit" db:"quota_limit"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Remaining returns how many sends are left on this record.
func (q *QuotaRecord) Remaining() int {
	r := q.DailyLimit - q.EmailsSent
	if r < 0 {
		return 0
	}
	return r
}

// UTCDay truncates t to midnight UTC, the quota day boundary.
func UTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
