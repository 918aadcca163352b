package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/reply"
	"github.com/lib/pq"
)

// ReplyRepo implements reply.Repository against PostgreSQL.
type ReplyRepo struct{ db *sql.DB }

// NewReplyRepo creates a Postgres-backed reply repository.
func NewReplyRepo(db *sql.DB) *ReplyRepo { return &ReplyRepo{db: db} }

const replyColumns = `
	id, draft_id, from_email, COALESCE(subject,''), body,
	COALESCE(intent,''), classified, confidence,
	COALESCE(availability_text,''), cc_recipients, attachments,
	has_inline_images, received_at, processed_at`

func scanReply(row rowScanner) (*domain.Reply, error) {
	rep := &domain.Reply{}
	var cc, attachments pq.StringArray
	var processedAt sql.NullTime
	err := row.Scan(
		&rep.ID, &rep.DraftID, &rep.FromEmail, &rep.Subject, &rep.Body,
		&rep.Intent, &rep.Classified, &rep.Confidence,
		&rep.AvailabilityText, &cc, &attachments,
		&rep.HasInlineImages, &rep.ReceivedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}
	rep.CCRecipients = []string(cc)
	rep.Attachments = []string(attachments)
	if processedAt.Valid {
		rep.ProcessedAt = &processedAt.Time
	}
	return rep, nil
}

func (r *ReplyRepo) Get(ctx context.Context, id string) (*domain.Reply, error) {
	rep, err := scanReply(r.db.QueryRowContext(ctx, `
		SELECT `+replyColumns+` FROM outreach_replies WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, reply.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reply: %w", err)
	}
	return rep, nil
}

func (r *ReplyRepo) Insert(ctx context.Context, rep *domain.Reply) error {
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_replies
			(id, draft_id, from_email, subject, body, intent, classified,
			 confidence, availability_text, cc_recipients, attachments,
			 has_inline_images, received_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	`, rep.ID, rep.DraftID, rep.FromEmail, rep.Subject, rep.Body, rep.Intent,
		rep.Classified, rep.Confidence, rep.AvailabilityText,
		pq.Array(rep.CCRecipients), pq.Array(rep.Attachments),
		rep.HasInlineImages, rep.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return nil
}

func (r *ReplyRepo) UpdateClassification(ctx context.Context, id string, intent domain.ReplyIntent, classified bool, confidence float64, availability string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_replies
		SET intent = $1, classified = $2, confidence = $3,
		    availability_text = $4, processed_at = NOW()
		WHERE id = $5
	`, intent, classified, confidence, availability, id)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reply.ErrNotFound
	}
	return nil
}

func (r *ReplyRepo) ListByDraft(ctx context.Context, draftID string) ([]domain.Reply, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+replyColumns+` FROM outreach_replies
		WHERE draft_id = $1 ORDER BY received_at ASC
	`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list replies by draft: %w", err)
	}
	defer rows.Close()

	var out []domain.Reply
	for rows.Next() {
		rep, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

func (r *ReplyRepo) ListUnclassified(ctx context.Context, limit int) ([]domain.Reply, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+replyColumns+` FROM outreach_replies
		WHERE classified = false ORDER BY received_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclassified replies: %w", err)
	}
	defer rows.Close()

	var out []domain.Reply
	for rows.Next() {
		rep, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

func (r *ReplyRepo) HasReplyToDraft(ctx context.Context, draftID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM outreach_replies WHERE draft_id = $1)
	`, draftID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reply exists: %w", err)
	}
	return exists, nil
}

// HasReplyInChain reports whether any reply exists for the root draft or
// any follow-up chained to it.
func (r *ReplyRepo) HasReplyInChain(ctx context.Context, rootDraftID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM outreach_replies rep
			JOIN outreach_drafts d ON rep.draft_id = d.id
			WHERE d.id = $1 OR d.original_draft_id = $1)
	`, rootDraftID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check chain reply exists: %w", err)
	}
	return exists, nil
}
