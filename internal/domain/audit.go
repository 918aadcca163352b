package domain

import "time"

// AuditEntry records a single state transition for a contact or draft.
// Every approve/reject/cancel/send and enrichment status change appends one.
type AuditEntry struct {
	ID         string    `json:"id" db:"id"`
	EntityType string    `json:"entity_type" db:"entity_type"` // "contact" | "draft"
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Action     string    `json:"action" db:"action"`
	OldStatus  string    `json:"old_status" db:"old_status"`
	NewStatus  string    `json:"new_status" db:"new_status"`
	ActorID    string    `json:"actor_id,omitempty" db:"actor_id"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
