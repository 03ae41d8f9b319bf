// Package app wires configuration into adapters, services and the HTTP
// server, and owns the application lifecycle.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	_ "github.com/lib/pq"

	"DeliberoScan/internal/config"
	"DeliberoScan/internal/infrastructure/direct"
	"DeliberoScan/internal/infrastructure/firecrawl"
	"DeliberoScan/internal/infrastructure/llm"
	"DeliberoScan/internal/infrastructure/storage"
	"DeliberoScan/internal/infrastructure/whatsapp"
	"DeliberoScan/internal/listing"
	"DeliberoScan/internal/logging"
	"DeliberoScan/internal/otp"
	"DeliberoScan/internal/ports"
	"DeliberoScan/internal/scheduler"
	"DeliberoScan/internal/server"
	"DeliberoScan/internal/usecase"
)

// Application holds the wired components.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	pipeline *usecase.Pipeline
	otp      *otp.Service
	scraper  ports.Scraper
	httpApp  *fiber.App
	periodic *usecase.SyncScheduler
}

// New connects to storage, runs migrations and builds every component.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := storage.RunMigrations(db, cfg.Database.MigrationsDir, logging.Component(baseLogger, "migrations")); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := storage.NewPostgresRepository(db)

	var scraper ports.Scraper
	if cfg.Firecrawl.APIKey != "" {
		scraper = firecrawl.NewClient(cfg.Firecrawl)
	} else {
		baseLogger.Warn("no firecrawl key configured, using direct fetcher")
		scraper = direct.NewScraper(nil, cfg.Firecrawl.UserAgent)
	}

	extractor := llm.NewExtractor(cfg.OpenAI)
	messenger := whatsapp.NewMessenger(cfg.WaSender)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Scraper:    scraper,
		Extractor:  extractor,
		Repository: repo,
		Parsers:    listing.NewRegistry(),
		Listing:    cfg.Listing,
		Logger:     logging.Component(baseLogger, "pipeline"),
	})

	otpService := otp.NewService(repo, messenger, cfg.OTP.TTL, logging.Component(baseLogger, "otp"))

	httpApp := server.New(server.Deps{
		Pipeline:    pipeline,
		Scraper:     scraper,
		Extractor:   extractor,
		OTP:         otpService,
		BearerToken: cfg.Server.BearerToken,
		Logger:      logging.Component(baseLogger, "http"),
	})

	application := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		db:       db,
		pipeline: pipeline,
		otp:      otpService,
		scraper:  scraper,
		httpApp:  httpApp,
	}

	if cfg.Scheduler.Enabled {
		driver := scheduler.NewTickerScheduler(cfg.Scheduler.Interval)
		application.periodic = usecase.NewSyncScheduler(driver, pipeline)
	}

	return application, nil
}

// Serve starts the periodic scheduler (if enabled) and the HTTP API,
// blocking until the listener stops.
func (a *Application) Serve(ctx context.Context) error {
	if a.periodic != nil {
		if err := a.periodic.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() { _ = a.periodic.Stop(ctx) }()
	}

	addr := a.cfg.Server.Host + ":" + a.cfg.Server.Port
	a.logger.Info("http server listening", "addr", addr)
	return a.httpApp.Listen(addr)
}

// Pipeline exposes the orchestrator for CLI invocations.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
