package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/contact"
	"github.com/lib/pq"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `
	id, email, name, COALESCE(industry,''), COALESCE(title,''),
	COALESCE(company,''), COALESCE(painpoint,''), relevance_score,
	status, COALESCE(error_message,''), retry_count, replied_interested,
	COALESCE(timezone,''), unsubscribed, unsubscribed_at, do_not_followup,
	deleted, embedding, cluster_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*domain.Contact, error) {
	c := &domain.Contact{}
	var unsubscribedAt sql.NullTime
	var clusterID sql.NullInt64
	var embedding pq.Float64Array
	err := row.Scan(
		&c.ID, &c.Email, &c.Name, &c.Industry, &c.Title,
		&c.Company, &c.Painpoint, &c.RelevanceScore,
		&c.Status, &c.ErrorMessage, &c.RetryCount, &c.RepliedInterested,
		&c.Timezone, &c.Unsubscribed, &unsubscribedAt, &c.DoNotFollowup,
		&c.Deleted, &embedding, &clusterID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if unsubscribedAt.Valid {
		c.UnsubscribedAt = &unsubscribedAt.Time
	}
	if clusterID.Valid {
		n := int(clusterID.Int64)
		c.ClusterID = &n
	}
	if embedding != nil {
		c.Embedding = []float64(embedding)
	}
	return c, nil
}

func (r *ContactRepo) Get(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM outreach_contacts
		WHERE id = $1 AND deleted = false
	`, id))
	if err == sql.ErrNoRows {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM outreach_contacts
		WHERE email = $1 AND deleted = false
	`, email))
	if err == sql.ErrNoRows {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact by email: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) List(ctx context.Context, f contact.ListFilter) ([]domain.Contact, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := " WHERE deleted = false"
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Industry != "" {
		where += fmt.Sprintf(" AND industry = $%d", idx)
		args = append(args, f.Industry)
		idx++
	}
	if f.Cluster != nil {
		where += fmt.Sprintf(" AND cluster_id = $%d", idx)
		args = append(args, *f.Cluster)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d)", idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outreach_contacts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	q := "SELECT " + contactColumns + " FROM outreach_contacts" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_contacts
			(id, email, name, industry, status, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, c.ID, c.Email, c.Name, c.Industry, c.Status, c.Timezone)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return contact.ErrDuplicateEmail
		}
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) SetEnriched(ctx context.Context, id string, e contact.EnrichedFields) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_contacts
		SET title = $1, company = $2, painpoint = $3, relevance_score = $4,
		    status = $5, error_message = '', updated_at = NOW()
		WHERE id = $6 AND deleted = false
	`, e.Title, e.Company, e.Painpoint, e.RelevanceScore, domain.ContactEnriched, id)
	if err != nil {
		return fmt.Errorf("set enriched: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) SetEnrichmentFailed(ctx context.Context, id string, status domain.ContactStatus, errMsg string, retryCount int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_contacts
		SET status = $1, error_message = $2, retry_count = $3, updated_at = NOW()
		WHERE id = $4 AND deleted = false
	`, status, errMsg, retryCount, id)
	if err != nil {
		return fmt.Errorf("set enrichment failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) SaveEmbedding(ctx context.Context, id string, vec []float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_contacts SET embedding = $1, updated_at = NOW()
		WHERE id = $2 AND deleted = false
	`, pq.Float64Array(vec), id)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) AssignCluster(ctx context.Context, id string, cluster int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_contacts SET cluster_id = $1, updated_at = NOW()
		WHERE id = $2 AND deleted = false
	`, cluster, id)
	if err != nil {
		return fmt.Errorf("assign cluster: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) MarkRepliedInterested(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_contacts SET replied_interested = true, updated_at = NOW()
		WHERE id = $1 AND deleted = false
	`, id)
	if err != nil {
		return fmt.Errorf("mark replied interested: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) MarkUnsubscribed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_contacts
		SET unsubscribed = true, unsubscribed_at = $1, updated_at = NOW()
		WHERE id = $2 AND deleted = false
	`, at, id)
	if err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) MarkDoNotFollowup(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_contacts SET do_not_followup = true, updated_at = NOW()
		WHERE id = $1 AND deleted = false
	`, id)
	if err != nil {
		return fmt.Errorf("mark do not followup: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) SoftDelete(ctx context.Context, id, scrubEmail, scrubName string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_contacts
		SET deleted = true, email = $1, name = $2,
		    title = '', company = '', painpoint = '', updated_at = NOW()
		WHERE id = $3 AND deleted = false
	`, scrubEmail, scrubName, id)
	if err != nil {
		return fmt.Errorf("soft delete contact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}
