package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/compliance"
)

// TokenRepo implements compliance.TokenRepository against PostgreSQL.
type TokenRepo struct{ db *sql.DB }

// NewTokenRepo creates a Postgres-backed unsubscribe token repository.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) Insert(ctx context.Context, t *domain.UnsubscribeToken) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_unsubscribe_tokens
			(id, contact_id, token, used, created_at)
		VALUES ($1, $2, $3, false, $4)
	`, t.ID, t.ContactID, t.Token, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r *TokenRepo) GetByToken(ctx context.Context, token string) (*domain.UnsubscribeToken, error) {
	t := &domain.UnsubscribeToken{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, contact_id, token, used, used_at, created_at
		FROM outreach_unsubscribe_tokens
		WHERE token = $1
	`, token).Scan(&t.ID, &t.ContactID, &t.Token, &t.Used, &usedAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, compliance.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	return t, nil
}

func (r *TokenRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_unsubscribe_tokens SET used = true, used_at = $1
		WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return compliance.ErrTokenNotFound
	}
	return nil
}

// AuditRepo stores audit entries. Entries are append-only.
type AuditRepo struct{ db *sql.DB }

// NewAuditRepo creates a Postgres-backed audit log.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Record(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_audit_log
			(id, entity_type, entity_id, action, old_status, new_status,
			 actor_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8, $9)
	`, e.ID, e.EntityType, e.EntityID, e.Action, e.OldStatus, e.NewStatus,
		e.ActorID, e.Notes, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepo) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action,
		       COALESCE(old_status,''), COALESCE(new_status,''),
		       COALESCE(actor_id,''), COALESCE(notes,''), created_at
		FROM outreach_audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action,
			&e.OldStatus, &e.NewStatus, &e.ActorID, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
