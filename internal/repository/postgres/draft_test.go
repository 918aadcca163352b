package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/draft"
	"github.com/ignite/outreach-engine/internal/service/quota"
)

func TestDraftTransitionClaims(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewDraftRepo(db)
	sentAt := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	t.Run("claim succeeds from approved", func(t *testing.T) {
		mock.ExpectExec("UPDATE outreach_drafts SET").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.Transition(context.Background(), "d1",
			[]domain.DraftStatus{domain.DraftApproved}, domain.DraftSent,
			draft.StatusFields{SentAt: &sentAt})
		if err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if !ok {
			t.Error("expected claim to succeed")
		}
	})

	t.Run("lost race reports false", func(t *testing.T) {
		mock.ExpectExec("UPDATE outreach_drafts SET").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.Transition(context.Background(), "d1",
			[]domain.DraftStatus{domain.DraftApproved}, domain.DraftSent,
			draft.StatusFields{SentAt: &sentAt})
		if err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if ok {
			t.Error("a zero-row update must report a lost claim, not success")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDraftGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewDraftRepo(db)
	mock.ExpectQuery("SELECT (.+) FROM outreach_drafts WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestQuotaIncrementIfAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewQuotaRepo(db)
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	t.Run("increments within limit", func(t *testing.T) {
		mock.ExpectQuery("UPDATE outreach_send_quotas").
			WithArgs("sender@example.com", day, 1).
			WillReturnRows(sqlmock.NewRows([]string{"emails_sent"}).AddRow(5))

		sent, err := repo.IncrementIfAvailable(context.Background(), "sender@example.com", day, 1)
		if err != nil {
			t.Fatalf("IncrementIfAvailable failed: %v", err)
		}
		if sent != 5 {
			t.Errorf("expected counter 5, got %d", sent)
		}
	})

	t.Run("exhausted when guard rejects", func(t *testing.T) {
		mock.ExpectQuery("UPDATE outreach_send_quotas").
			WithArgs("sender@example.com", day, 1).
			WillReturnError(sql.ErrNoRows)

		if _, err := repo.IncrementIfAvailable(context.Background(), "sender@example.com", day, 1); !errors.Is(err, quota.ErrExhausted) {
			t.Fatalf("expected ErrExhausted, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
