package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/tracklink/internal/adapter/driven/github"
	jenkinsadapter "github.com/ericfisherdev/tracklink/internal/adapter/driven/jenkins"
	sqliteadapter "github.com/ericfisherdev/tracklink/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/tracklink/internal/adapter/driving/http"
	"github.com/ericfisherdev/tracklink/internal/application"
	"github.com/ericfisherdev/tracklink/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"reconcile_interval", cfg.ReconcileInterval,
		"build_stale_after", cfg.BuildStaleAfter,
		"ci_configured", cfg.HasCI(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer.DB); err != nil {
		return err
	}
	logger.Info("migrations complete")

	// 5. Wire stores.
	tx := sqliteadapter.NewTransactor(db)
	repoStore := sqliteadapter.NewRepoRepo(db)
	prStore := sqliteadapter.NewPRRepo(db)
	commitStore := sqliteadapter.NewCommitRepo(db)
	taskStore := sqliteadapter.NewTaskRepo(db)
	buildStore := sqliteadapter.NewBuildRepo(db)
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	leaseStore := sqliteadapter.NewLeaseRepo(db)

	// 6. Wire external clients.
	ghClient, err := githubadapter.NewClient(cfg.GitHubAPIURL, cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	catalog, err := jenkinsadapter.LoadCatalog(cfg.PipelineTemplates)
	if err != nil {
		return err
	}
	ciClient := jenkinsadapter.NewClient(cfg.CIBaseURL, cfg.CIUsername, cfg.CIAPIToken, cfg.HTTPTimeout, catalog)
	if !cfg.HasCI() {
		logger.Warn("no CI runner configured, builds will be recorded but not started")
	}
	if cfg.WebhookCallbackURL == "" {
		logger.Warn("no webhook callback url configured, pending repositories will be marked failed by reconciliation")
	}

	// 7. Wire application services.
	taskSvc := application.NewTaskService(taskStore, logger)
	buildSvc := application.NewBuildService(tx, buildStore, credentialStore, ciClient, cfg.CICallbackURL, cfg.BuildStaleAfter, logger)
	prSvc := application.NewPullRequestService(tx, repoStore, prStore, buildSvc, logger)
	ingestSvc := application.NewIngestService(tx, logger)
	webhookSvc := application.NewWebhookService(repoStore, githubadapter.NewWebhookCodec(), ingestSvc, prSvc, logger)
	repoSvc := application.NewRepositoryService(repoStore, commitStore, credentialStore, ghClient, ciClient, cfg.WebhookCallbackURL, logger)
	healthSvc := application.NewHealthService(db, repoStore)
	reconcileSvc := application.NewReconcileService(repoStore, credentialStore, ghClient, leaseStore, application.ReconcileConfig{
		Interval:    cfg.ReconcileInterval,
		Grace:       cfg.ReconcileGrace,
		MaxRetries:  cfg.WebhookMaxRetries,
		CallbackURL: cfg.WebhookCallbackURL,
		LeaseTTL:    cfg.ReconcileInterval,
	}, logger)

	// 8. Start background loops.
	go reconcileSvc.Start(ctx)
	go buildSvc.StartSweeper(ctx, cfg.BuildSweepInterval)

	// 9. Create HTTP handler.
	apiHandler := httphandler.NewHandler(httphandler.Services{
		Webhooks:     webhookSvc,
		Builds:       buildSvc,
		Repositories: repoSvc,
		PullRequests: prSvc,
		Tasks:        taskSvc,
		Reconciler:   reconcileSvc,
		Health:       healthSvc,
	}, cfg.CICallbackKey, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewRouter(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * cfg.HTTPTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("tracklink started",
		"listen_addr", cfg.ListenAddr,
		"webhook_endpoint", strings.TrimRight(cfg.WebhookCallbackURL, "/"),
	)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
