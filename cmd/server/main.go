package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"clausewise/internal/completion"
	_ "clausewise/internal/completion/claude"
	_ "clausewise/internal/completion/gemini"
	_ "clausewise/internal/completion/openai"
	"clausewise/internal/config"
	"clausewise/internal/email/noop"
	"clausewise/internal/email/ses"
	"clausewise/internal/extract"
	"clausewise/internal/handler"
	"clausewise/internal/logger"
	"clausewise/internal/port"
	"clausewise/internal/repository/postgres"
	"clausewise/internal/router"
	"clausewise/internal/service"
	s3storage "clausewise/internal/storage/s3"
	"clausewise/internal/summarizer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer appLog.Sync()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := postgres.NewUserRepo(db)
	contractRepo := postgres.NewContractRepo(db)

	// Initialize archive storage
	var archive port.ObjectStorage
	if cfg.S3.Enabled {
		archive, err = s3storage.NewArchiveStore(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	}

	// Initialize email sender
	var emailSender port.EmailSender
	if cfg.Email.Provider == "ses" {
		emailSender, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName, cfg.Email.FrontendURL)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	} else {
		emailSender = noop.NewNoopSender(cfg.Email.FrontendURL, appLog)
	}

	// Initialize the analysis pipeline
	client := buildCompletionClient(&cfg.Completion, appLog)
	opts, err := summarizer.OptionsFromConfig(&cfg.Analysis)
	if err != nil {
		appLog.Warn("token counter unavailable, using character estimate", "error", err)
	}
	analyzer := summarizer.New(client, opts, appLog)

	// Initialize services
	authSvc := service.NewAuthService(userRepo, cfg.JWT)
	contractSvc := service.NewContractService(service.ContractServiceDeps{
		Analyzer:      analyzer,
		Extractor:     extract.NewExtractor(appLog),
		Contracts:     contractRepo,
		Users:         userRepo,
		Storage:       archive,
		Email:         emailSender,
		MaxBytes:      cfg.Upload.MaxBytes(),
		PresignExpiry: time.Duration(cfg.S3.PresignExpiry) * time.Second,
		Log:           appLog,
	})

	// Initialize handlers
	handlers := router.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Analysis: handler.NewAnalysisHandler(contractSvc, cfg.Upload.MaxBytes(), cfg.Analysis.PingInterval, appLog),
		Contract: handler.NewContractHandler(contractSvc),
		Health:   handler.NewHealthHandler(db),
	}

	// Setup router
	r := router.Setup(cfg, authSvc, handlers, appLog)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("server starting", "addr", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server shutdown error", "error", err)
	}
	if err := contractSvc.Wait(shutdownCtx); err != nil {
		appLog.Warn("pending contract saves did not finish", "error", err)
	}
	appLog.Info("server stopped")
	return nil
}

// buildCompletionClient wires the configured providers in priority order. It
// returns nil when none is usable, which makes analysis requests fail
// validation instead of the server refusing to start.
func buildCompletionClient(cfg *config.CompletionConfig, log *logger.Logger) port.CompletionClient {
	tiers := []struct {
		name string
		cfg  *config.CompletionProviderConfig
	}{
		{"primary", cfg.PrimaryConfig()},
		{"secondary", cfg.SecondaryConfig()},
		{"tertiary", cfg.TertiaryConfig()},
	}

	var (
		clients []port.CompletionClient
		names   []string
	)
	for _, tier := range tiers {
		if tier.cfg == nil || tier.cfg.Provider == "" {
			continue
		}
		c, err := completion.NewClient(tier.cfg)
		if err != nil {
			log.Warn("completion provider disabled", "tier", tier.name, "provider", tier.cfg.Provider, "error", err)
			continue
		}
		clients = append(clients, c)
		names = append(names, tier.cfg.Provider)
		log.Info("completion provider configured", "tier", tier.name, "provider", tier.cfg.Provider, "model", tier.cfg.DefaultModel)
	}

	switch len(clients) {
	case 0:
		log.Warn("no completion provider configured; analysis requests will be rejected", "available", completion.Providers())
		return nil
	case 1:
		return clients[0]
	default:
		return completion.NewFallbackClient(clients, names, log)
	}
}
