package draft

import "errors"

// Sentinel errors for the draft service layer.
var (
	ErrNotFound          = errors.New("draft not found")
	ErrAlreadySent       = errors.New("draft already sent")
	ErrNotApproved       = errors.New("draft not approved")
	ErrNotSent           = errors.New("draft not sent yet")
	ErrSpamScoreExceeded = errors.New("spam score exceeds limit")
	ErrUnsubscribed      = errors.New("contact has unsubscribed")
	ErrDoNotFollowup     = errors.New("contact is flagged do not followup")
	ErrSendInProgress    = errors.New("send already in progress for draft")
	ErrTerminalStatus    = errors.New("draft is in a terminal status")
)
