package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ignite/outreach-engine/internal/service/draft"
	"github.com/ignite/outreach-engine/internal/service/followup"
)

// CheckFollowups scans sent drafts and generates follow-up drafts for
// every contact that has gone quiet.
func (h *Handlers) CheckFollowups(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateSubject string `json:"template_subject"`
		TemplateBody    string `json:"template_body"`
	}
	// An empty body means default templates.
	_ = decodeJSON(r, &req)

	generated, err := h.followups.CheckAndGenerate(r.Context(),
		draftTemplate(req.TemplateSubject, req.TemplateBody))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"generated": generated,
		"count":     len(generated),
	})
}

// ListDueFollowups returns scheduled drafts whose send window has
// arrived. Dispatch is a separate call.
//
//	GET /api/followups/due?limit=
func (h *Handlers) ListDueFollowups(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	due, err := h.drafts.ListDue(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list due follow-ups")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"due":   due,
		"count": len(due),
	})
}

// ScheduleFollowup creates a follow-up for one sent draft, scheduled a
// number of days out.
func (h *Handlers) ScheduleFollowup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DraftID         string `json:"draft_id"`
		DaysDelay       int    `json:"days_delay"`
		TemplateSubject string `json:"template_subject"`
		TemplateBody    string `json:"template_body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DraftID == "" {
		respondError(w, http.StatusBadRequest, "draft_id is required")
		return
	}
	d, err := h.followups.ScheduleFollowup(r.Context(), req.DraftID, req.DaysDelay,
		draftTemplate(req.TemplateSubject, req.TemplateBody))
	switch {
	case errors.Is(err, draft.ErrNotFound):
		respondError(w, http.StatusNotFound, "Draft not found")
	case errors.Is(err, draft.ErrNotSent):
		respondError(w, http.StatusConflict, "Original draft has not been sent")
	case errors.Is(err, followup.ErrAlreadyReplied):
		respondError(w, http.StatusConflict, "Contact already replied to this draft")
	case errors.Is(err, draft.ErrUnsubscribed):
		respondError(w, http.StatusConflict, "Contact has unsubscribed")
	case errors.Is(err, draft.ErrDoNotFollowup):
		respondError(w, http.StatusConflict, "Contact is marked do-not-followup")
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusCreated, d)
	}
}
