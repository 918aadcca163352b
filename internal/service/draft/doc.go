// Package draft implements the outbound email lifecycle: generation,
// approval workflow, and the guarded send path.
//
// Sending is the chokepoint of the whole engine. A send claim passes six
// gates in order (existence, no prior send, approval, recipient opt-out,
// spam score, quota) before a message reaches the transport, and the
// already-sent check is enforced twice: once as a fast gate and once as a
// compare-and-set status claim under a per-draft distributed lock, so two
// racing senders can never both deliver.
package draft
