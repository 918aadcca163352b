package domain

import "time"

// DraftStatus enumerates the lifecycle states of an email draft.
type DraftStatus string

const (
	DraftPendingApproval DraftStatus = "pending_approval"
	DraftApproved        DraftStatus = "approved"
	DraftRejected        DraftStatus = "rejected"
	DraftScheduled       DraftStatus = "scheduled"
	DraftSent            DraftStatus = "sent"
	DraftSendFailed      DraftStatus = "send_failed"
)

// EmailDraft is one outbound message tied to exactly one contact.
//
// Status only advances through the transition table enforced by the draft
// service. DraftSent is permanently terminal: no edits, no re-send, no
// cancellation. Exactly one of ApprovedAt/RejectionReason is set once the
// draft leaves DraftPendingApproval.
type EmailDraft struct {
	ID        string `json:"id" db:"id"`
	ContactID string `json:"contact_id" db:"contact_id"`

	ToEmail   string `json:"to_email" db:"to_email"`
	FromEmail string `json:"from_email" db:"from_email"`
	Subject   string `json:"subject" db:"subject"`
	Body      string `json:"body" db:"body"`

	Status DraftStatus `json:"status" db:"status"`

	ApprovedAt      *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	ApprovedBy      string     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovalNotes   string     `json:"approval_notes,omitempty" db:"approval_notes"`
	RejectionReason string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CancelReason    string     `json:"cancel_reason,omitempty" db:"cancel_reason"`
	Edited          bool       `json:"edited" db:"edited"`

	// QualityScore estimates how ready the draft is for sending, on a 0-10
	// scale. It feeds auto-approval; a human approval ignores it.
	QualityScore float64 `json:"quality_score" db:"quality_score"`

	MessageID string     `json:"message_id,omitempty" db:"message_id"`
	ThreadID  string     `json:"thread_id,omitempty" db:"thread_id"`
	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`

	// ScheduledAt is set when a send was deferred (business hours) or the
	// draft is an explicitly scheduled follow-up.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`

	UnsubscribeToken string `json:"-" db:"unsubscribe_token"`
	UnsubscribeURL   string `json:"unsubscribe_url,omitempty" db:"unsubscribe_url"`

	// Follow-up linkage. OriginalDraftID is a foreign-key style reference
	// (an id, not an ownership pointer) to the draft this one follows up on.
	OriginalDraftID   string `json:"original_draft_id,omitempty" db:"original_draft_id"`
	FollowupSequence  int    `json:"followup_sequence_number" db:"followup_sequence_number"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the draft is in a final state.
func (d *EmailDraft) IsTerminal() bool {
	return d.Status == DraftSent || d.Status == DraftRejected || d.Status == DraftSendFailed
}

// IsFollowup reports whether this draft was generated as a follow-up.
func (d *EmailDraft) IsFollowup() bool {
	return d.OriginalDraftID != ""
}

// SendStatus enumerates the outcome states a send attempt can report.
// QUOTA_EXCEEDED and SCHEDULED are expected flow-control outcomes, not
// errors; the caller may retry later.
type SendStatus string

const (
	SendStatusSent          SendStatus = "SENT"
	SendStatusMockSent      SendStatus = "MOCK_SENT"
	SendStatusScheduled     SendStatus = "SCHEDULED"
	SendStatusQuotaExceeded SendStatus = "QUOTA_EXCEEDED"
	SendStatusRateLimited   SendStatus = "RATE_LIMITED"
	SendStatusFailed        SendStatus = "SEND_FAILED"
)

// SendOutcome reports the result of a send attempt on one draft.
type SendOutcome struct {
	DraftID     string     `json:"draft_id"`
	Status      SendStatus `json:"status"`
	MessageID   string     `json:"message_id,omitempty"`
	ThreadID    string     `json:"thread_id,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	// QuotaRemaining carries context on QUOTA_EXCEEDED so the caller can
	// explain the rejection, not just report a boolean refusal.
	QuotaRemaining *int   `json:"quota_remaining,omitempty"`
	Error          string `json:"error,omitempty"`
}
