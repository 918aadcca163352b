package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/outreach-engine/internal/service/draft"
	"github.com/ignite/outreach-engine/internal/service/quota"
	"github.com/ignite/outreach-engine/internal/service/spamcheck"
)

func draftTemplate(subject, body string) *draft.Template {
	if subject == "" && body == "" {
		return nil
	}
	return &draft.Template{Subject: subject, Body: body}
}

// ListDrafts returns a page of drafts.
//
//	GET /api/drafts?status=&contact_id=&limit=&offset=
func (h *Handlers) ListDrafts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := draft.ListFilter{
		Status:    q.Get("status"),
		ContactID: q.Get("contact_id"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	drafts, total, err := h.drafts.List(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list drafts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"drafts": drafts,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// GetDraft returns a single draft by id.
func (h *Handlers) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, draft.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Draft not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get draft")
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// GenerateDraft creates a draft for one contact, from a template or the
// model.
func (h *Handlers) GenerateDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID       string `json:"contact_id"`
		TemplateSubject string `json:"template_subject"`
		TemplateBody    string `json:"template_body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ContactID == "" {
		respondError(w, http.StatusBadRequest, "contact_id is required")
		return
	}
	d, err := h.drafts.Generate(r.Context(), req.ContactID,
		draftTemplate(req.TemplateSubject, req.TemplateBody))
	if errors.Is(err, draft.ErrUnsubscribed) {
		respondError(w, http.StatusConflict, "Contact has unsubscribed")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// GenerateDraftsBulk creates drafts for a list of contacts. Per-contact
// failures are reported without aborting the batch.
func (h *Handlers) GenerateDraftsBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactIDs      []string `json:"contact_ids"`
		TemplateSubject string   `json:"template_subject"`
		TemplateBody    string   `json:"template_body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.ContactIDs) == 0 {
		respondError(w, http.StatusBadRequest, "contact_ids is required")
		return
	}
	result, err := h.drafts.GenerateBulk(r.Context(), req.ContactIDs,
		draftTemplate(req.TemplateSubject, req.TemplateBody))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// UpdateDraft edits a draft's subject and body before approval.
func (h *Handlers) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := h.drafts.UpdateContent(r.Context(), chi.URLParam(r, "id"), req.Subject, req.Body)
	if errors.Is(err, draft.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Draft not found")
		return
	}
	if errors.Is(err, draft.ErrTerminalStatus) {
		respondError(w, http.StatusConflict, "Draft can no longer be edited")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// ApproveDraft marks a draft approved for sending.
func (h *Handlers) ApproveDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Notes  string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := h.drafts.Approve(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Notes)
	if errors.Is(err, draft.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Draft not found")
		return
	}
	if errors.Is(err, draft.ErrAlreadySent) {
		respondError(w, http.StatusConflict, "Draft has already been sent")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// RejectDraft rejects a draft with a reason.
func (h *Handlers) RejectDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := h.drafts.Reject(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Reason)
	if errors.Is(err, draft.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Draft not found")
		return
	}
	if errors.Is(err, draft.ErrAlreadySent) {
		respondError(w, http.StatusConflict, "Draft has already been sent")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// CancelDrafts reverts a batch of unsent drafts to pending approval. The
// batch is all-or-nothing: if any draft was already sent nothing changes.
func (h *Handlers) CancelDrafts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DraftIDs []string `json:"draft_ids"`
		ActorID  string   `json:"actor_id"`
		Reason   string   `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.DraftIDs) == 0 {
		respondError(w, http.StatusBadRequest, "draft_ids is required")
		return
	}
	err := h.drafts.Cancel(r.Context(), req.DraftIDs, req.ActorID, req.Reason)
	if errors.Is(err, draft.ErrAlreadySent) {
		respondError(w, http.StatusConflict, "Batch includes a sent draft; nothing was cancelled")
		return
	}
	if errors.Is(err, draft.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Batch includes an unknown draft; nothing was cancelled")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": len(req.DraftIDs),
	})
}

// BulkApproveDrafts approves a list of drafts.
func (h *Handlers) BulkApproveDrafts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DraftIDs []string `json:"draft_ids"`
		UserID   string   `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.DraftIDs) == 0 {
		respondError(w, http.StatusBadRequest, "draft_ids is required")
		return
	}
	respondJSON(w, http.StatusOK, h.drafts.BulkApprove(r.Context(), req.DraftIDs, req.UserID))
}

// AutoApproveDrafts approves every pending draft whose quality score
// clears the configured threshold.
func (h *Handlers) AutoApproveDrafts(w http.ResponseWriter, r *http.Request) {
	approved, err := h.drafts.AutoApprove(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"approved": approved,
		"count":    len(approved),
	})
}

// SendDraft sends one approved draft through the guarded send path.
func (h *Handlers) SendDraft(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.drafts.Send(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, draft.ErrNotFound):
		respondError(w, http.StatusNotFound, "Draft not found")
	case errors.Is(err, draft.ErrAlreadySent):
		respondError(w, http.StatusConflict, "Draft has already been sent")
	case errors.Is(err, draft.ErrNotApproved):
		respondError(w, http.StatusConflict, "Draft is not approved")
	case errors.Is(err, draft.ErrUnsubscribed):
		respondError(w, http.StatusConflict, "Contact has unsubscribed")
	case errors.Is(err, draft.ErrSpamScoreExceeded):
		respondError(w, http.StatusConflict, "Spam score exceeds the configured maximum")
	case errors.Is(err, draft.ErrSendInProgress):
		respondError(w, http.StatusConflict, "A send for this draft is already in progress")
	case errors.Is(err, quota.ErrExhausted):
		respondError(w, http.StatusTooManyRequests, "Daily send quota exhausted")
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusOK, outcome)
	}
}

// SendDraftsBulk sends a batch of drafts under a per-call rate limit.
// Per-draft failures surface as outcomes rather than aborting the batch.
func (h *Handlers) SendDraftsBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DraftIDs  []string `json:"draft_ids"`
		RateLimit int      `json:"rate_limit"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.DraftIDs) == 0 {
		respondError(w, http.StatusBadRequest, "draft_ids is required")
		return
	}
	outcomes := h.drafts.SendBulk(r.Context(), req.DraftIDs, req.RateLimit)
	respondJSON(w, http.StatusOK, map[string]interface{}{"outcomes": outcomes})
}

// DispatchScheduled re-attempts drafts whose deferred send time has
// arrived.
func (h *Handlers) DispatchScheduled(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	outcomes, err := h.drafts.DispatchDueScheduled(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"outcomes": outcomes})
}

// DraftSpamScore scores a stored draft's content.
func (h *Handlers) DraftSpamScore(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, draft.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Draft not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get draft")
		return
	}
	respondJSON(w, http.StatusOK, spamcheck.Check(d.Subject, d.Body))
}

// DraftSpamSuggestions returns rewrite suggestions for a stored draft.
func (h *Handlers) DraftSpamSuggestions(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, draft.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Draft not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get draft")
		return
	}
	respondJSON(w, http.StatusOK, spamcheck.Analyze(d.Subject, d.Body))
}

// SpamCheck scores arbitrary subject and body text, with rewrite
// suggestions.
func (h *Handlers) SpamCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"result":   spamcheck.Check(req.Subject, req.Body),
		"analysis": spamcheck.Analyze(req.Subject, req.Body),
	})
}
