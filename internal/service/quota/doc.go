// Package quota tracks the daily send allowance per sender identity.
//
// Records are keyed by (sender, UTC day) and created lazily the first time
// a day is touched, so rollover needs no scheduled reset: a send after
// midnight simply lands on a fresh record. Increments are guarded by the
// repository so the counter never passes the limit under concurrency.
package quota
