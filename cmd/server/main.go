package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/outreach-engine/internal/api"
	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/llm"
	"github.com/ignite/outreach-engine/internal/pkg/distlock"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
	"github.com/ignite/outreach-engine/internal/repository/postgres"
	"github.com/ignite/outreach-engine/internal/service/compliance"
	"github.com/ignite/outreach-engine/internal/service/contact"
	"github.com/ignite/outreach-engine/internal/service/costledger"
	"github.com/ignite/outreach-engine/internal/service/draft"
	"github.com/ignite/outreach-engine/internal/service/followup"
	"github.com/ignite/outreach-engine/internal/service/quota"
	"github.com/ignite/outreach-engine/internal/service/reply"
	"github.com/ignite/outreach-engine/internal/transport"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// sendLocks hands out per-draft distributed locks, backed by Redis when
// available and Postgres advisory locks otherwise.
type sendLocks struct {
	redis *redis.Client
	db    *sql.DB
}

func (l *sendLocks) ForDraftSend(draftID string) distlock.DistLock {
	return distlock.ForDraftSend(l.redis, l.db, draftID)
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()
	log.Println("[Server] Database connected")

	// Redis for distributed send locking. Optional; advisory locks cover
	// the single-instance case.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("[Server] Redis connection failed (%v), falling back to PG advisory locks", err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Println("[Server] Redis connected (distributed send locking enabled)")
		}
		pingCancel()
	}

	// Repositories
	contactRepo := postgres.NewContactRepo(db)
	draftRepo := postgres.NewDraftRepo(db)
	replyRepo := postgres.NewReplyRepo(db)
	costRepo := postgres.NewCostLogRepo(db)
	quotaRepo := postgres.NewQuotaRepo(db)
	tokenRepo := postgres.NewTokenRepo(db)
	auditRepo := postgres.NewAuditRepo(db)

	// Model provider: Bedrock when enabled, OpenAI otherwise. Bedrock has
	// no embedding model wired, so OpenAI always backs embeddings.
	openaiProvider := llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel,
		cfg.OpenAI.EmbeddingModel, time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second)
	var provider llm.Provider = openaiProvider
	if cfg.Bedrock.Enabled {
		bp, err := llm.NewBedrockProvider(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID,
			cfg.Bedrock.AccessKey, cfg.Bedrock.SecretKey, openaiProvider)
		if err != nil {
			log.Printf("[Server] Bedrock init failed (%v), using OpenAI", err)
		} else {
			provider = bp
			log.Printf("[Server] Bedrock provider active (model: %s)", cfg.Bedrock.ModelID)
		}
	}

	// Sender identity. Falls back to the transport's own address when the
	// sender block is not set.
	fromEmail := cfg.Sender.FromEmail
	if fromEmail == "" {
		fromEmail = cfg.Gmail.SenderEmail
	}
	if fromEmail == "" {
		fromEmail = cfg.SES.FromEmail
	}
	if fromEmail == "" && !cfg.Sending.MockMode {
		log.Fatal("No sender email configured; set sender.from_email or enable mock mode")
	}

	// Transport: Gmail when credentials are present, SES when enabled,
	// mock otherwise. Mock mode forces the mock transport regardless.
	var sender transport.Sender
	switch {
	case cfg.Sending.MockMode:
		sender = transport.NewMockSender()
		log.Println("[Server] MOCK MODE: no real emails will be sent")
	case cfg.Gmail.ClientID != "" && cfg.Gmail.RefreshToken != "":
		sender, err = transport.NewGmailSender(ctx, cfg.Gmail.ClientID,
			cfg.Gmail.ClientSecret, cfg.Gmail.RefreshToken, fromEmail)
		if err != nil {
			log.Fatalf("Failed to initialize Gmail transport: %v", err)
		}
		log.Println("[Server] Gmail transport active")
	case cfg.SES.Enabled:
		sender, err = transport.NewSESSender(ctx, cfg.SES.Region,
			cfg.SES.AccessKey, cfg.SES.SecretKey, fromEmail)
		if err != nil {
			log.Fatalf("Failed to initialize SES transport: %v", err)
		}
		log.Println("[Server] SES transport active")
	default:
		sender = transport.NewMockSender()
		log.Println("[Server] No transport configured, using mock sender")
	}

	// Services
	ledger := costledger.NewService(costRepo, cfg.Budget.DailyLimitUSD)
	quotaSvc := quota.NewService(quotaRepo, fromEmail, cfg.Sending.DailySendLimit)
	complianceSvc := compliance.NewService(tokenRepo, contactRepo, cfg.Server.PublicURL)
	contactSvc := contact.NewService(contactRepo, provider, ledger, auditRepo,
		draftRepo, cfg.Enrichment.MaxRetries)

	draftSvc := draft.NewService(draftRepo, contactRepo, provider, quotaSvc,
		ledger, auditRepo, complianceSvc,
		&sendLocks{redis: redisClient, db: db}, sender,
		draft.Config{
			FromEmail:            fromEmail,
			SenderName:           cfg.Sender.Name,
			SenderCompany:        cfg.Sender.Company,
			MaxSpamScore:         cfg.Sending.MaxSpamScore,
			RespectBusinessHours: cfg.Sending.RespectBusinessHours,
			MockMode:             cfg.Sending.MockMode,
		})

	followupSvc := followup.NewService(draftRepo, contactRepo, replyRepo, draftSvc,
		followup.Config{
			DaysSinceSend: cfg.Followup.DaysSinceSend,
			MaxFollowups:  cfg.Followup.MaxFollowups,
		})

	replySvc := reply.NewService(replyRepo, draftRepo, contactRepo, provider, ledger)

	handlers := api.NewHandlers(
		contactSvc, draftSvc, followupSvc, replySvc,
		ledger, quotaSvc, complianceSvc,
		func(n int) costledger.Estimate {
			return costledger.EstimateEnrichment(n, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbeddingModel)
		},
		api.ConfigView{
			DailySendLimit:       cfg.Sending.DailySendLimit,
			MaxSpamScore:         cfg.Sending.MaxSpamScore,
			RespectBusinessHours: cfg.Sending.RespectBusinessHours,
			MockMode:             cfg.Sending.MockMode,
			DailyBudgetUSD:       cfg.Budget.DailyLimitUSD,
			FollowupDays:         cfg.Followup.DaysSinceSend,
			MaxFollowups:         cfg.Followup.MaxFollowups,
			ChatModel:            cfg.OpenAI.ChatModel,
			EmbeddingModel:       cfg.OpenAI.EmbeddingModel,
		},
	)

	server := api.NewServer(cfg.Server, handlers)

	// Scheduled-send dispatcher. Drafts deferred past business hours get
	// re-attempted once their scheduled time arrives.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				outcomes, err := draftSvc.DispatchDueScheduled(ctx, 50)
				if err != nil {
					log.Printf("[Dispatcher] Scheduled dispatch failed: %v", err)
					continue
				}
				if len(outcomes) > 0 {
					log.Printf("[Dispatcher] Dispatched %d scheduled draft(s)", len(outcomes))
				}
			}
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[Server] Listening on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("[Server] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	db.Close()
	log.Println("[Server] Stopped")
}
