package api

import (
	"net/http"
	"strconv"
	"time"
)

// ListCosts returns a page of the cost log.
//
//	GET /api/costs?limit=&offset=
func (h *Handlers) ListCosts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, total, err := h.costs.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list cost entries")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

// CostBreakdown returns today's spend grouped by model.
func (h *Handlers) CostBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.costs.Breakdown(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute breakdown")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"breakdown": breakdown})
}

// BudgetStatus reports today's spend against the daily budget.
func (h *Handlers) BudgetStatus(w http.ResponseWriter, r *http.Request) {
	spent, err := h.costs.DailyCost(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute daily cost")
		return
	}
	remaining, err := h.costs.RemainingBudget(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute remaining budget")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"spent_today":  spent,
		"remaining":    remaining,
		"daily_budget": h.configView.DailyBudgetUSD,
		"exceeded":     remaining <= 0,
	})
}

// EstimateEnrichment projects the cost of enriching n contacts.
//
//	GET /api/costs/estimate?contacts=50
func (h *Handlers) EstimateEnrichment(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("contacts"))
	if err != nil || n <= 0 {
		respondError(w, http.StatusBadRequest, "contacts must be a positive integer")
		return
	}
	respondJSON(w, http.StatusOK, h.estimate(n))
}

// QuotaStatus reports today's send quota usage.
func (h *Handlers) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.quota.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read quota")
		return
	}
	remaining, err := h.quota.Remaining(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read quota")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"quota":     rec,
		"remaining": remaining,
	})
}

// ResetQuota zeroes today's send counter.
func (h *Handlers) ResetQuota(w http.ResponseWriter, r *http.Request) {
	if err := h.quota.Reset(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to reset quota")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
