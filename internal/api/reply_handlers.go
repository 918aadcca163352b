package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/outreach-engine/internal/service/reply"
)

// IngestReply records an incoming reply and classifies its intent.
func (h *Handlers) IngestReply(w http.ResponseWriter, r *http.Request) {
	var req reply.IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DraftID == "" || req.FromEmail == "" {
		respondError(w, http.StatusBadRequest, "draft_id and from_email are required")
		return
	}
	rec, err := h.replies.Ingest(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// IngestRepliesBatch records a batch of replies. Failed items are
// skipped.
func (h *Handlers) IngestRepliesBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Replies []reply.IngestRequest `json:"replies"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Replies) == 0 {
		respondError(w, http.StatusBadRequest, "replies is required")
		return
	}
	ingested := h.replies.IngestBatch(r.Context(), req.Replies)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ingested": ingested,
		"count":    len(ingested),
		"skipped":  len(req.Replies) - len(ingested),
	})
}

// ListDraftReplies returns the replies recorded against a draft.
func (h *Handlers) ListDraftReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.replies.ListByDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list replies")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"replies": replies})
}

// ListUnclassifiedReplies returns replies whose classification failed.
func (h *Handlers) ListUnclassifiedReplies(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	replies, err := h.replies.ListUnclassified(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list replies")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"replies": replies})
}

// ReclassifyReply re-runs intent classification for one stored reply.
func (h *Handlers) ReclassifyReply(w http.ResponseWriter, r *http.Request) {
	rec, err := h.replies.Reclassify(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, reply.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Reply not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
