package compliance

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
)

var tokenPattern = regexp.MustCompile(`unsub_[0-9a-f-]+_[a-f0-9]{64}`)

// Service issues and redeems unsubscribe tokens and answers suppression
// questions for the send path.
type Service struct {
	tokens    TokenRepository
	contacts  ContactMarker
	publicURL string
	now       func() time.Time
}

// NewService creates a compliance service. publicURL is the externally
// reachable base used to build unsubscribe links.
func NewService(tokens TokenRepository, contacts ContactMarker, publicURL string) *Service {
	return &Service{
		tokens:    tokens,
		contacts:  contacts,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// GenerateToken issues a new single-use token for the contact and returns
// the token string plus the full unsubscribe URL.
func (s *Service) GenerateToken(ctx context.Context, contactID string) (string, string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generate token salt: %w", err)
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s",
		contactID, hex.EncodeToString(salt), s.now().UTC().Format(time.RFC3339Nano))))
	token := fmt.Sprintf("unsub_%s_%s", contactID, hex.EncodeToString(sum[:]))

	rec := &domain.UnsubscribeToken{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Token:     token,
		CreatedAt: s.now().UTC(),
	}
	if err := s.tokens.Insert(ctx, rec); err != nil {
		return "", "", fmt.Errorf("store unsubscribe token: %w", err)
	}

	return token, s.publicURL + "/unsubscribe/" + token, nil
}

// ProcessUnsubscribe redeems a token: the contact is marked unsubscribed
// and the token consumed. Redeeming an already-used token is a no-op
// success so that double clicks on the link do not surface errors.
func (s *Service) ProcessUnsubscribe(ctx context.Context, token string) error {
	rec, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if rec.Used {
		return nil
	}

	now := s.now().UTC()
	if err := s.contacts.MarkUnsubscribed(ctx, rec.ContactID, now); err != nil {
		return fmt.Errorf("mark contact unsubscribed: %w", err)
	}
	if err := s.tokens.MarkUsed(ctx, rec.ID, now); err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}

	log.Printf("[Compliance] Processed unsubscribe for contact %s", rec.ContactID)
	return nil
}

// MarkDoNotFollowup exempts a contact from the follow-up pipeline without
// blocking direct sends. Set on DECLINE replies.
func (s *Service) MarkDoNotFollowup(ctx context.Context, contactID string) error {
	return s.contacts.MarkDoNotFollowup(ctx, contactID)
}

// CheckSendable returns ErrUnsubscribed when the contact has opted out.
func (s *Service) CheckSendable(ctx context.Context, contactID string) error {
	c, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return err
	}
	if c.Unsubscribed {
		log.Printf("[Compliance] Blocked send to unsubscribed contact %s", logger.RedactEmail(c.Email))
		return ErrUnsubscribed
	}
	return nil
}

// ExtractToken pulls an unsubscribe token out of free text, typically an
// inbound email body. Returns "" when none is present.
func ExtractToken(text string) string {
	return tokenPattern.FindString(text)
}

// ContactIDFromToken parses the contact id embedded in a token string.
func ContactIDFromToken(token string) string {
	if !strings.HasPrefix(token, "unsub_") {
		return ""
	}
	rest := strings.TrimPrefix(token, "unsub_")
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return ""
	}
	return rest[:i]
}
