package compliance

import (
	"context"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

// TokenRepository defines the data access contract for unsubscribe tokens.
type TokenRepository interface {
	// Insert stores a freshly issued token.
	Insert(ctx context.Context, t *domain.UnsubscribeToken) error

	// GetByToken looks a token up by its string value. Returns
	// ErrTokenNotFound when it does not exist.
	GetByToken(ctx context.Context, token string) (*domain.UnsubscribeToken, error)

	// MarkUsed records the redemption time of a token.
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

// ContactMarker is the slice of the contact store compliance needs: the
// ability to flag a contact as unsubscribed or followup-exempt.
type ContactMarker interface {
	MarkUnsubscribed(ctx context.Context, contactID string, at time.Time) error
	MarkDoNotFollowup(ctx context.Context, contactID string) error
	Get(ctx context.Context, contactID string) (*domain.Contact, error)
}
