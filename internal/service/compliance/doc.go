// Package compliance handles opt-out handling and suppression.
//
// Every outbound email carries an unsubscribe link built from a single-use
// token. Redeeming a token marks the contact unsubscribed; a contact, once
// unsubscribed, never receives another send or follow-up from any path.
package compliance
