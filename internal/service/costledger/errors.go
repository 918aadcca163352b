package costledger

import "errors"

// Sentinel errors for the cost ledger service layer.
var (
	// ErrBudgetExceeded is returned when the day's spend has reached the
	// configured ceiling and no further priced operations are admitted.
	ErrBudgetExceeded = errors.New("daily budget exceeded")
)
