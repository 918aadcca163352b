package reply

import "errors"

// ErrNotFound indicates the reply does not exist.
var ErrNotFound = errors.New("reply not found")
