package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/quota"
)

// CostLogRepo implements costledger.Repository against PostgreSQL. The log
// is append-only; totals are computed with aggregate queries rather than a
// maintained counter.
type CostLogRepo struct{ db *sql.DB }

// NewCostLogRepo creates a Postgres-backed cost log repository.
func NewCostLogRepo(db *sql.DB) *CostLogRepo { return &CostLogRepo{db: db} }

func (r *CostLogRepo) Insert(ctx context.Context, e *domain.CostLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_cost_log
			(id, operation_type, model, tokens_used, cost, contact_id, draft_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), $8)
	`, e.ID, e.Kind, e.Model, e.TokensUsed, e.Cost, e.ContactID, e.DraftID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert cost entry: %w", err)
	}
	return nil
}

func (r *CostLogRepo) SumBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost), 0) FROM outreach_cost_log
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum costs: %w", err)
	}
	return total, nil
}

func (r *CostLogRepo) BreakdownByModel(ctx context.Context, from time.Time) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT model, SUM(cost) FROM outreach_cost_log
		WHERE created_at >= $1
		GROUP BY model
	`, from)
	if err != nil {
		return nil, fmt.Errorf("cost breakdown: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var model string
		var cost float64
		if err := rows.Scan(&model, &cost); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		out[model] = cost
	}
	return out, rows.Err()
}

func (r *CostLogRepo) List(ctx context.Context, limit, offset int) ([]domain.CostLogEntry, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outreach_cost_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cost entries: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, operation_type, model, tokens_used, cost,
		       COALESCE(contact_id,''), COALESCE(draft_id,''), created_at
		FROM outreach_cost_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list cost entries: %w", err)
	}
	defer rows.Close()

	var out []domain.CostLogEntry
	for rows.Next() {
		var e domain.CostLogEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Model, &e.TokensUsed, &e.Cost,
			&e.ContactID, &e.DraftID, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan cost entry: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// QuotaRepo implements quota.Repository against PostgreSQL. The increment
// is a single guarded UPDATE so two concurrent sends can never overrun the
// daily limit.
type QuotaRepo struct{ db *sql.DB }

// NewQuotaRepo creates a Postgres-backed quota repository.
func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

const quotaColumns = `id, sender, date, emails_sent, quota_limit, created_at, updated_at`

func scanQuota(row rowScanner) (*domain.QuotaRecord, error) {
	q := &domain.QuotaRecord{}
	err := row.Scan(&q.ID, &q.Sender, &q.Date, &q.EmailsSent, &q.DailyLimit, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *QuotaRepo) Get(ctx context.Context, sender string, day time.Time) (*domain.QuotaRecord, error) {
	q, err := scanQuota(r.db.QueryRowContext(ctx, `
		SELECT `+quotaColumns+` FROM outreach_send_quotas
		WHERE sender = $1 AND date = $2
	`, sender, day))
	if err == sql.ErrNoRows {
		return nil, quota.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quota record: %w", err)
	}
	return q, nil
}

func (r *QuotaRepo) Create(ctx context.Context, rec *domain.QuotaRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_send_quotas
			(id, sender, date, emails_sent, quota_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (sender, date) DO NOTHING
	`, rec.ID, rec.Sender, rec.Date, rec.EmailsSent, rec.DailyLimit)
	if err != nil {
		return fmt.Errorf("create quota record: %w", err)
	}
	return nil
}

func (r *QuotaRepo) IncrementIfAvailable(ctx context.Context, sender string, day time.Time, count int) (int, error) {
	var sent int
	err := r.db.QueryRowContext(ctx, `
		UPDATE outreach_send_quotas
		SET emails_sent = emails_sent + $3, updated_at = NOW()
		WHERE sender = $1 AND date = $2 AND emails_sent + $3 <= quota_limit
		RETURNING emails_sent
	`, sender, day, count).Scan(&sent)
	if err == sql.ErrNoRows {
		return 0, quota.ErrExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("increment quota: %w", err)
	}
	return sent, nil
}

func (r *QuotaRepo) Latest(ctx context.Context, sender string) (*domain.QuotaRecord, error) {
	q, err := scanQuota(r.db.QueryRowContext(ctx, `
		SELECT `+quotaColumns+` FROM outreach_send_quotas
		WHERE sender = $1 ORDER BY date DESC LIMIT 1
	`, sender))
	if err == sql.ErrNoRows {
		return nil, quota.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest quota record: %w", err)
	}
	return q, nil
}

func (r *QuotaRepo) ResetDay(ctx context.Context, sender string, day time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_send_quotas SET emails_sent = 0, updated_at = NOW()
		WHERE sender = $1 AND date = $2
	`, sender, day)
	if err != nil {
		return fmt.Errorf("reset quota: %w", err)
	}
	return nil
}
