package followup

import "errors"

// ErrAlreadyReplied rejects an explicit follow-up on a draft that has a
// reply.
var ErrAlreadyReplied = errors.New("contact already replied to draft")
