package domain

import "time"

// UnsubscribeToken is one issued opt-out token. The token string is
// cryptographically unguessable; the contact id is carried as a lookup key
// only, never as the token's secrecy property.
type UnsubscribeToken struct {
	ID        string     `json:"id" db:"id"`
	ContactID string     `json:"contact_id" db:"contact_id"`
	Token     string     `json:"token" db:"token"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
