package quota

import "errors"

// Sentinel errors for the quota service layer.
var (
	ErrNotFound = errors.New("quota record not found")

	// ErrExhausted is returned by IncrementIfAvailable when the reservation
	// would push the counter past the daily limit.
	ErrExhausted = errors.New("daily send quota exhausted")
)
