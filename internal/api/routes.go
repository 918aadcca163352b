package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes builds the router for the outreach API.
func SetupRoutes(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	// Unsubscribe stays outside /api: the link lands in recipients' inboxes.
	r.Get("/unsubscribe/{token}", h.Unsubscribe)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Post("/", h.CreateContact)
			r.Post("/import", h.ImportContacts)
			r.Get("/export", h.ExportContacts)
			r.Post("/enrich-batch", h.EnrichContactsBatch)
			r.Post("/cluster", h.ClusterContacts)
			r.Get("/{id}", h.GetContact)
			r.Delete("/{id}", h.DeleteContact)
			r.Post("/{id}/enrich", h.EnrichContact)
		})

		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", h.ListDrafts)
			r.Post("/", h.GenerateDraft)
			r.Post("/bulk", h.GenerateDraftsBulk)
			r.Post("/approve-bulk", h.BulkApproveDrafts)
			r.Post("/auto-approve", h.AutoApproveDrafts)
			r.Post("/send-bulk", h.SendDraftsBulk)
			r.Post("/cancel", h.CancelDrafts)
			r.Post("/dispatch-scheduled", h.DispatchScheduled)
			r.Post("/spam-check", h.SpamCheck)
			r.Get("/{id}", h.GetDraft)
			r.Put("/{id}", h.UpdateDraft)
			r.Post("/{id}/approve", h.ApproveDraft)
			r.Post("/{id}/reject", h.RejectDraft)
			r.Post("/{id}/send", h.SendDraft)
			r.Get("/{id}/spam-score", h.DraftSpamScore)
			r.Get("/{id}/spam-suggestions", h.DraftSpamSuggestions)
			r.Get("/{id}/replies", h.ListDraftReplies)
		})

		r.Route("/followups", func(r chi.Router) {
			r.Post("/check", h.CheckFollowups)
			r.Post("/schedule", h.ScheduleFollowup)
			r.Get("/due", h.ListDueFollowups)
		})

		r.Route("/replies", func(r chi.Router) {
			r.Post("/", h.IngestReply)
			r.Post("/batch", h.IngestRepliesBatch)
			r.Get("/unclassified", h.ListUnclassifiedReplies)
			r.Post("/{id}/reclassify", h.ReclassifyReply)
		})

		r.Route("/costs", func(r chi.Router) {
			r.Get("/", h.ListCosts)
			r.Get("/breakdown", h.CostBreakdown)
			r.Get("/budget", h.BudgetStatus)
			r.Get("/estimate", h.EstimateEnrichment)
		})

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", h.QuotaStatus)
			r.Post("/reset", h.ResetQuota)
		})
	})

	return r
}
