package compliance

import "errors"

// Sentinel errors for the compliance service layer.
var (
	ErrTokenNotFound = errors.New("unsubscribe token not found")
	ErrTokenUsed     = errors.New("unsubscribe token already used")
	ErrUnsubscribed  = errors.New("contact has unsubscribed")
)
