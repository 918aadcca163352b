package quota

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
)

// Service manages the daily send allowance for one sender identity.
type Service struct {
	repo       Repository
	sender     string
	dailyLimit int
	now        func() time.Time
}

// NewService creates a quota service for the given sender address.
func NewService(repo Repository, sender string, dailyLimit int) *Service {
	return &Service{repo: repo, sender: sender, dailyLimit: dailyLimit, now: time.Now}
}

// ensureToday lazily creates the current day's record.
func (s *Service) ensureToday(ctx context.Context) (*domain.QuotaRecord, error) {
	day := domain.UTCDay(s.now())

	rec, err := s.repo.Get(ctx, s.sender, day)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rec = &domain.QuotaRecord{
		ID:         uuid.New().String(),
		Sender:     s.sender,
		Date:       day,
		EmailsSent: 0,
		DailyLimit: s.dailyLimit,
		CreatedAt:  s.now().UTC(),
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create quota record: %w", err)
	}
	log.Printf("[Quota] Created quota record for %s", day.Format("2006-01-02"))
	return rec, nil
}

// Used returns the number of emails sent today.
func (s *Service) Used(ctx context.Context) (int, error) {
	rec, err := s.ensureToday(ctx)
	if err != nil {
		return 0, err
	}
	return rec.EmailsSent, nil
}

// Remaining returns the number of sends left today, floored at zero.
func (s *Service) Remaining(ctx context.Context) (int, error) {
	rec, err := s.ensureToday(ctx)
	if err != nil {
		return 0, err
	}
	return rec.Remaining(), nil
}

// CanSend reports whether count more emails fit in today's allowance.
func (s *Service) CanSend(ctx context.Context, count int) (bool, error) {
	remaining, err := s.Remaining(ctx)
	if err != nil {
		return false, err
	}
	if remaining < count {
		log.Printf("[Quota] Quota exceeded: %d remaining, %d requested", remaining, count)
		return false, nil
	}
	return true, nil
}

// Reserve atomically claims count sends from today's allowance and returns
// the remaining quota after the claim. Returns ErrExhausted when the claim
// does not fit; the counter is left untouched in that case.
func (s *Service) Reserve(ctx context.Context, count int) (int, error) {
	rec, err := s.ensureToday(ctx)
	if err != nil {
		return 0, err
	}

	sent, err := s.repo.IncrementIfAvailable(ctx, s.sender, rec.Date, count)
	if err != nil {
		return 0, err
	}
	log.Printf("[Quota] Incremented quota: %d/%d", sent, rec.DailyLimit)
	return rec.DailyLimit - sent, nil
}

// Status returns today's full quota record.
func (s *Service) Status(ctx context.Context) (*domain.QuotaRecord, error) {
	return s.ensureToday(ctx)
}

// Reset zeroes today's counter. Testing hook.
func (s *Service) Reset(ctx context.Context) error {
	rec, err := s.ensureToday(ctx)
	if err != nil {
		return err
	}
	return s.repo.ResetDay(ctx, s.sender, rec.Date)
}
