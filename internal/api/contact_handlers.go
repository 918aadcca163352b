package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/outreach-engine/internal/service/contact"
	"github.com/ignite/outreach-engine/internal/service/costledger"
)

func contactFilterFromQuery(r *http.Request) contact.ListFilter {
	q := r.URL.Query()
	f := contact.ListFilter{
		Status:   q.Get("status"),
		Industry: q.Get("industry"),
		Search:   q.Get("search"),
	}
	if v := q.Get("cluster"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Cluster = &n
		}
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	return f
}

// ListContacts returns a page of contacts.
//
//	GET /api/contacts?status=&industry=&cluster=&search=&limit=&offset=
func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	f := contactFilterFromQuery(r)
	contacts, total, err := h.contacts.List(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list contacts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"contacts": contacts,
		"total":    total,
		"limit":    f.Limit,
		"offset":   f.Offset,
	})
}

// GetContact returns a single contact by id.
func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, contact.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Contact not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get contact")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// CreateContact adds a single contact.
func (h *Handlers) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Industry string `json:"industry"`
		Timezone string `json:"timezone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	c, err := h.contacts.Create(r.Context(), req.Name, req.Email, req.Industry, req.Timezone)
	if errors.Is(err, contact.ErrDuplicateEmail) {
		respondError(w, http.StatusConflict, "A contact with this email already exists")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// DeleteContact soft-deletes a contact and scrubs its PII.
func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	err := h.contacts.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, contact.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Contact not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete contact")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ImportContacts ingests a CSV payload of contacts.
func (h *Handlers) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	result, err := h.contacts.ImportCSV(r.Context(), req.Content)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ExportContacts streams contacts as CSV or JSON.
//
//	GET /api/contacts/export?format=csv|json
func (h *Handlers) ExportContacts(w http.ResponseWriter, r *http.Request) {
	f := contactFilterFromQuery(r)
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	switch format {
	case "csv":
		out, err := h.contacts.ExportCSV(r.Context(), f)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to export contacts")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="contacts.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out))
	case "json":
		out, err := h.contacts.ExportJSON(r.Context(), f)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to export contacts")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out))
	default:
		respondError(w, http.StatusBadRequest, "format must be csv or json")
	}
}

// EnrichContact runs profile enrichment for one contact.
func (h *Handlers) EnrichContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Enrich(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, contact.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Contact not found")
		return
	}
	if errors.Is(err, contact.ErrNotEnrichable) {
		respondError(w, http.StatusConflict, "Contact is not in an enrichable state")
		return
	}
	if errors.Is(err, costledger.ErrBudgetExceeded) {
		respondError(w, http.StatusTooManyRequests, "Daily budget exceeded")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// EnrichContactsBatch enriches a set of contacts in rate-limited batches.
func (h *Handlers) EnrichContactsBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactIDs []string `json:"contact_ids"`
		BatchSize  int      `json:"batch_size"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.ContactIDs) == 0 {
		respondError(w, http.StatusBadRequest, "contact_ids is required")
		return
	}
	result, err := h.contacts.EnrichBatch(r.Context(), req.ContactIDs, req.BatchSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ClusterContacts groups enriched contacts by embedding similarity.
func (h *Handlers) ClusterContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactIDs []string `json:"contact_ids"`
		K          int      `json:"k"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	summaries, err := h.contacts.Cluster(r.Context(), req.ContactIDs, req.K)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"clusters": summaries})
}
