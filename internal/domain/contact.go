package domain

import "time"

// ContactStatus enumerates the enrichment lifecycle states of a contact.
type ContactStatus string

const (
	ContactImported         ContactStatus = "imported"
	ContactEnriched         ContactStatus = "enriched"
	ContactEnrichmentFailed ContactStatus = "enrichment_failed"
	ContactRateLimited      ContactStatus = "rate_limited"
)

// Contact represents a prospective recipient of outreach email.
//
// Email is unique across non-deleted contacts and immutable once set.
// The enrichment fields (Title, Company, Painpoint, RelevanceScore) are
// populated atomically with a transition to ContactEnriched; a failed
// enrichment never leaves partial data behind ContactEnriched.
type Contact struct {
	ID       string `json:"id" db:"id"`
	Email    string `json:"email" db:"email"`
	Name     string `json:"name" db:"name"`
	Industry string `json:"industry" db:"industry"`

	// Enrichment outputs. Empty until status is ContactEnriched.
	Title          string  `json:"title" db:"title"`
	Company        string  `json:"company" db:"company"`
	Painpoint      string  `json:"painpoint" db:"painpoint"`
	RelevanceScore float64 `json:"relevance_score" db:"relevance_score"`

	Status       ContactStatus `json:"status" db:"status"`
	ErrorMessage string        `json:"error_message,omitempty" db:"error_message"`
	RetryCount   int           `json:"retry_count" db:"retry_count"`

	// RepliedInterested is an orthogonal flag, not a status value. It is
	// set when any classified reply on the contact's drafts is INTERESTED.
	RepliedInterested bool `json:"replied_interested" db:"replied_interested"`

	Timezone       string     `json:"timezone" db:"timezone"`
	Unsubscribed   bool       `json:"unsubscribed" db:"unsubscribed"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty" db:"unsubscribed_at"`
	DoNotFollowup  bool       `json:"do_not_followup" db:"do_not_followup"`
	Deleted        bool       `json:"deleted" db:"deleted"`

	// Embedding vector for clustering. Nil until embeddings are generated.
	Embedding []float64 `json:"embedding,omitempty" db:"embedding"`
	ClusterID *int      `json:"cluster_id,omitempty" db:"cluster_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CanRetryEnrichment reports whether the contact is in a state that permits
// another enrichment attempt.
func (c *Contact) CanRetryEnrichment() bool {
	return c.Status == ContactImported ||
		c.Status == ContactEnrichmentFailed ||
		c.Status == ContactRateLimited
}

// ClampRelevance bounds a raw relevance score to [0, 10].
func ClampRelevance(raw float64) float64 {
	if raw < 0 {
		return 0
	}
	if raw > 10 {
		return 10
	}
	return raw
}
