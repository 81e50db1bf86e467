package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/adapter"
	httptransport "github.com/spec-kit/ticket-intake/internal/api/http"
	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/classify"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/ingest"
	"github.com/spec-kit/ticket-intake/internal/mailpoll"
	"github.com/spec-kit/ticket-intake/internal/notify"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/persistence"
	"github.com/spec-kit/ticket-intake/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.PoolHandle() != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var tickets store.TicketStore
	if pool := pg.PoolHandle(); pool != nil {
		tickets = store.NewPostgresStore(pool)
	} else {
		tickets = store.NewMemoryStore()
	}

	var watermarks store.WatermarkStore
	if redis != nil && redis.Client != nil {
		watermarks = store.NewRedisWatermarkStore(redis.Client)
	} else {
		watermarks = store.NewMemoryWatermarkStore()
	}

	metrics := observability.NewMetrics()
	hub := notify.NewHub()

	lexicon := classify.DefaultLexicon()
	if cfg.Classifier.LexiconPath != "" {
		lexicon, err = classify.LoadLexicon(cfg.Classifier.LexiconPath)
		if err != nil {
			logger.Fatal("failed to load classification lexicon", zap.Error(err))
		}
	}

	var remote classify.RemoteClassifier
	if cfg.Classifier.Enabled() {
		remote = classify.NewGeminiClient(cfg.Classifier.APIKey,
			classify.WithBaseURL(cfg.Classifier.BaseURL),
			classify.WithModel(cfg.Classifier.Model))
	} else {
		logger.Warn("remote classifier not configured, using fallback only")
	}

	retry := classify.DefaultRetryPolicy()
	if cfg.Classifier.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Classifier.MaxAttempts
	}

	classifier := classify.NewClassifier(lexicon, classify.Options{
		Remote:     remote,
		Retry:      retry,
		Timeout:    cfg.Classifier.Timeout(),
		Threshold:  cfg.Classifier.ConfidenceThreshold,
		Logger:     logger,
		OnFallback: metrics.RecordFallbackClassification,
	})

	orchestrator := ingest.NewOrchestrator(ingest.Config{
		TicketNumberPrefix: cfg.Ingest.TicketNumberPrefix,
		DedupBucket:        cfg.Ingest.DedupBucket(),
	}, ingest.Dependencies{
		Store:      tickets,
		Classifier: classifier,
		Hub:        hub,
		Logger:     logger,
		Metrics:    metrics,
	})

	registry := adapter.NewRegistry()
	keys := auth.NewIntegrationKeys(cfg.Ingest.IntegrationKeys)
	tokens := auth.NewTicketTokenManager(cfg.Auth.TicketTokenSecret, cfg.Auth.TicketTokenTTLMinutes)

	if len(cfg.Email.Mailboxes) > 0 {
		mailboxes := make([]mailpoll.Mailbox, 0, len(cfg.Email.Mailboxes))
		for _, mb := range cfg.Email.Mailboxes {
			mailboxes = append(mailboxes, mailpoll.Mailbox{
				Name:   mb.Name,
				Source: mailpoll.NewIMAPSource(mb.Addr, mb.Username, mb.Password),
			})
		}
		worker := mailpoll.NewWorker(mailboxes, adapter.NewEmailAdapter(), orchestrator, watermarks, cfg.Email.PollInterval(), logger)
		if err := worker.Start(ctx); err != nil {
			logger.Fatal("failed to start mail polling worker", zap.Error(err))
		}
		defer worker.Stop()
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Ingest:          handlers.NewIngestHandler(registry, orchestrator, keys, tokens, cfg.Attachments.StorageDir, logger),
		Tickets:         handlers.NewTicketsHandler(orchestrator, hub),
		IntegrationKeys: keys,
		TicketTokens:    tokens,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
