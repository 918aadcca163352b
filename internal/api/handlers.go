package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/service/contact"
	"github.com/ignite/outreach-engine/internal/service/costledger"
	"github.com/ignite/outreach-engine/internal/service/draft"
	"github.com/ignite/outreach-engine/internal/service/reply"
)

// ContactService is the contact lifecycle surface the API exposes.
type ContactService interface {
	Get(ctx context.Context, id string) (*domain.Contact, error)
	List(ctx context.Context, f contact.ListFilter) ([]domain.Contact, int, error)
	Create(ctx context.Context, name, email, industry, timezone string) (*domain.Contact, error)
	Delete(ctx context.Context, id string) error
	Enrich(ctx context.Context, id string) (*domain.Contact, error)
	EnrichBatch(ctx context.Context, ids []string, batchSize int) (*contact.BatchResult, error)
	Cluster(ctx context.Context, ids []string, k int) ([]contact.ClusterSummary, error)
	ImportCSV(ctx context.Context, content string) (*contact.ImportResult, error)
	ExportCSV(ctx context.Context, f contact.ListFilter) (string, error)
	ExportJSON(ctx context.Context, f contact.ListFilter) (string, error)
}

// DraftService is the draft lifecycle surface the API exposes.
type DraftService interface {
	Get(ctx context.Context, id string) (*domain.EmailDraft, error)
	List(ctx context.Context, f draft.ListFilter) ([]domain.EmailDraft, int, error)
	Generate(ctx context.Context, contactID string, tmpl *draft.Template) (*domain.EmailDraft, error)
	GenerateBulk(ctx context.Context, contactIDs []string, tmpl *draft.Template) (*draft.BulkGenerateResult, error)
	UpdateContent(ctx context.Context, id, subject, body string) (*domain.EmailDraft, error)
	Approve(ctx context.Context, id, userID, notes string) (*domain.EmailDraft, error)
	Reject(ctx context.Context, id, userID, reason string) (*domain.EmailDraft, error)
	Cancel(ctx context.Context, ids []string, actorID, reason string) error
	BulkApprove(ctx context.Context, ids []string, userID string) *draft.BulkApproveResult
	AutoApprove(ctx context.Context) ([]domain.EmailDraft, error)
	Send(ctx context.Context, id string) (*domain.SendOutcome, error)
	SendBulk(ctx context.Context, ids []string, rateLimit int) []domain.SendOutcome
	ListDue(ctx context.Context, limit int) ([]domain.EmailDraft, error)
	DispatchDueScheduled(ctx context.Context, limit int) ([]domain.SendOutcome, error)
}

// FollowupService is the follow-up surface the API exposes.
type FollowupService interface {
	CheckAndGenerate(ctx context.Context, tmpl *draft.Template) ([]domain.EmailDraft, error)
	ScheduleFollowup(ctx context.Context, draftID string, daysDelay int, tmpl *draft.Template) (*domain.EmailDraft, error)
}

// ReplyService is the reply ingestion surface the API exposes.
type ReplyService interface {
	Ingest(ctx context.Context, req reply.IngestRequest) (*domain.Reply, error)
	IngestBatch(ctx context.Context, reqs []reply.IngestRequest) []domain.Reply
	ListByDraft(ctx context.Context, draftID string) ([]domain.Reply, error)
	ListUnclassified(ctx context.Context, limit int) ([]domain.Reply, error)
	Reclassify(ctx context.Context, replyID string) (*domain.Reply, error)
}

// CostService is the spend ledger surface the API exposes.
type CostService interface {
	DailyCost(ctx context.Context, date time.Time) (float64, error)
	RemainingBudget(ctx context.Context) (float64, error)
	Breakdown(ctx context.Context) (map[string]float64, error)
	List(ctx context.Context, limit, offset int) ([]domain.CostLogEntry, int, error)
}

// QuotaService is the send quota surface the API exposes.
type QuotaService interface {
	Used(ctx context.Context) (int, error)
	Remaining(ctx context.Context) (int, error)
	Status(ctx context.Context) (*domain.QuotaRecord, error)
	Reset(ctx context.Context) error
}

// ComplianceService is the unsubscribe surface the API exposes.
type ComplianceService interface {
	ProcessUnsubscribe(ctx context.Context, token string) error
}

// ConfigView is the non-secret runtime configuration exposed at
// /api/config.
type ConfigView struct {
	DailySendLimit       int     `json:"daily_send_limit"`
	MaxSpamScore         float64 `json:"max_spam_score"`
	RespectBusinessHours bool    `json:"respect_business_hours"`
	MockMode             bool    `json:"mock_mode"`
	DailyBudgetUSD       float64 `json:"daily_budget_usd"`
	FollowupDays         int     `json:"followup_days"`
	MaxFollowups         int     `json:"max_followups"`
	ChatModel            string  `json:"chat_model"`
	EmbeddingModel       string  `json:"embedding_model"`
}

// EstimateFn projects enrichment cost for n contacts. Wired to
// costledger.EstimateEnrichment with the configured models.
type EstimateFn func(n int) costledger.Estimate

// Handlers carries the service dependencies for all routes.
type Handlers struct {
	contacts   ContactService
	drafts     DraftService
	followups  FollowupService
	replies    ReplyService
	costs      CostService
	quota      QuotaService
	compliance ComplianceService
	estimate   EstimateFn
	configView ConfigView
}

// NewHandlers wires the route handlers to their services.
func NewHandlers(
	contacts ContactService,
	drafts DraftService,
	followups FollowupService,
	replies ReplyService,
	costs CostService,
	quota QuotaService,
	compliance ComplianceService,
	estimate EstimateFn,
	view ConfigView,
) *Handlers {
	return &Handlers{
		contacts:   contacts,
		drafts:     drafts,
		followups:  followups,
		replies:    replies,
		costs:      costs,
		quota:      quota,
		compliance: compliance,
		estimate:   estimate,
		configView: view,
	}
}

// HealthCheck reports liveness.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetConfig returns the non-secret runtime configuration.
//
//	GET /api/config
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.configView)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
