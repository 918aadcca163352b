// Package followup decides which sent drafts are due for another touch
// and chains new drafts onto their threads.
//
// Eligibility is the absence of any reply. A decline, an auto-reply, or
// an ambiguous answer all count as a reply and end the chain; only silence
// past the configured window produces a follow-up. Chains are capped at a
// maximum length and every link re-enters the draft lifecycle at pending
// approval.
package followup
