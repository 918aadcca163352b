package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/draft"
	"github.com/lib/pq"
)

// DraftRepo implements draft.Repository against PostgreSQL. Transition is
// a single guarded UPDATE, which is what makes the send path's
// compare-and-set safe across processes.
type DraftRepo struct{ db *sql.DB }

// NewDraftRepo creates a Postgres-backed draft repository.
func NewDraftRepo(db *sql.DB) *DraftRepo { return &DraftRepo{db: db} }

const draftColumns = `
	id, contact_id, to_email, from_email, subject, body, status,
	approved_at, COALESCE(approved_by,''), COALESCE(approval_notes,''),
	COALESCE(rejection_reason,''), COALESCE(cancel_reason,''), edited,
	quality_score, COALESCE(message_id,''), COALESCE(thread_id,''),
	sent_at, scheduled_at, COALESCE(unsubscribe_token,''),
	COALESCE(unsubscribe_url,''), COALESCE(original_draft_id,''),
	followup_sequence_number, created_at, updated_at`

func scanDraft(row rowScanner) (*domain.EmailDraft, error) {
	d := &domain.EmailDraft{}
	var approvedAt, sentAt, scheduledAt sql.NullTime
	err := row.Scan(
		&d.ID, &d.ContactID, &d.ToEmail, &d.FromEmail, &d.Subject, &d.Body, &d.Status,
		&approvedAt, &d.ApprovedBy, &d.ApprovalNotes,
		&d.RejectionReason, &d.CancelReason, &d.Edited,
		&d.QualityScore, &d.MessageID, &d.ThreadID,
		&sentAt, &scheduledAt, &d.UnsubscribeToken,
		&d.UnsubscribeURL, &d.OriginalDraftID,
		&d.FollowupSequence, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		d.ApprovedAt = &approvedAt.Time
	}
	if sentAt.Valid {
		d.SentAt = &sentAt.Time
	}
	if scheduledAt.Valid {
		d.ScheduledAt = &scheduledAt.Time
	}
	return d, nil
}

func (r *DraftRepo) Get(ctx context.Context, id string) (*domain.EmailDraft, error) {
	d, err := scanDraft(r.db.QueryRowContext(ctx, `
		SELECT `+draftColumns+` FROM outreach_drafts WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, draft.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return d, nil
}

func (r *DraftRepo) List(ctx context.Context, f draft.ListFilter) ([]domain.EmailDraft, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.ContactID != "" {
		where += fmt.Sprintf(" AND contact_id = $%d", idx)
		args = append(args, f.ContactID)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outreach_drafts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count drafts: %w", err)
	}

	q := "SELECT " + draftColumns + " FROM outreach_drafts" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

func (r *DraftRepo) ListByContact(ctx context.Context, contactID string) ([]domain.EmailDraft, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+draftColumns+` FROM outreach_drafts
		WHERE contact_id = $1 ORDER BY created_at ASC
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("list drafts by contact: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *DraftRepo) Create(ctx context.Context, d *domain.EmailDraft) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_drafts
			(id, contact_id, to_email, from_email, subject, body, status,
			 quality_score, thread_id, scheduled_at, unsubscribe_token,
			 unsubscribe_url, original_draft_id, followup_sequence_number,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''), $10,
		        $11, $12, NULLIF($13,''), $14, NOW(), NOW())
	`, d.ID, d.ContactID, d.ToEmail, d.FromEmail, d.Subject, d.Body, d.Status,
		d.QualityScore, d.ThreadID, d.ScheduledAt, d.UnsubscribeToken,
		d.UnsubscribeURL, d.OriginalDraftID, d.FollowupSequence)
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

func (r *DraftRepo) UpdateContent(ctx context.Context, id, subject, body string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_drafts
		SET subject = $1, body = $2, edited = true, updated_at = NOW()
		WHERE id = $3
	`, subject, body, id)
	if err != nil {
		return fmt.Errorf("update draft content: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return draft.ErrNotFound
	}
	return nil
}

func (r *DraftRepo) Transition(ctx context.Context, id string, from []domain.DraftStatus, to domain.DraftStatus, fields draft.StatusFields) (bool, error) {
	sets := "status = $1, updated_at = NOW()"
	args := []interface{}{to}
	idx := 2
	add := func(col string, val interface{}) {
		sets += fmt.Sprintf(", %s = $%d", col, idx)
		args = append(args, val)
		idx++
	}

	if fields.ApprovedAt != nil {
		add("approved_at", *fields.ApprovedAt)
	}
	if fields.ApprovedBy != nil {
		add("approved_by", *fields.ApprovedBy)
	}
	if fields.ApprovalNotes != nil {
		add("approval_notes", *fields.ApprovalNotes)
	}
	if fields.RejectionReason != nil {
		add("rejection_reason", *fields.RejectionReason)
	}
	if fields.CancelReason != nil {
		add("cancel_reason", *fields.CancelReason)
	}
	if fields.MessageID != nil {
		add("message_id", *fields.MessageID)
	}
	if fields.ThreadID != nil {
		add("thread_id", *fields.ThreadID)
	}
	if fields.SentAt != nil {
		add("sent_at", *fields.SentAt)
	}
	if fields.ScheduledAt != nil {
		add("scheduled_at", *fields.ScheduledAt)
	}

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	q := fmt.Sprintf(`
		UPDATE outreach_drafts SET %s
		WHERE id = $%d AND status = ANY($%d)
	`, sets, idx, idx+1)
	args = append(args, id, pq.Array(statuses))

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("transition draft: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *DraftRepo) ListScheduledDue(ctx context.Context, now time.Time, limit int) ([]domain.EmailDraft, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+draftColumns+` FROM outreach_drafts
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3
	`, domain.DraftScheduled, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list scheduled due: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *DraftRepo) ListSentBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EmailDraft, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+draftColumns+` FROM outreach_drafts
		WHERE status = $1 AND sent_at <= $2
		ORDER BY sent_at ASC
		LIMIT $3
	`, domain.DraftSent, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent before: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *DraftRepo) CountFollowups(ctx context.Context, originalDraftID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outreach_drafts WHERE original_draft_id = $1
	`, originalDraftID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count followups: %w", err)
	}
	return n, nil
}

func (r *DraftRepo) ScrubContactEmail(ctx context.Context, contactID, replacement string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_drafts SET to_email = $1, updated_at = NOW()
		WHERE contact_id = $2
	`, replacement, contactID)
	if err != nil {
		return fmt.Errorf("scrub draft emails: %w", err)
	}
	return nil
}
