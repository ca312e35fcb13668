package main

//go:generate swag init -g cmd/api/main.go -o docs --parseInternal -d ../..

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nflow-health/nflow/internal/api/handlers"
	"github.com/nflow-health/nflow/internal/api/router"
	"github.com/nflow-health/nflow/internal/archive"
	"github.com/nflow-health/nflow/internal/cache"
	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/db"
	"github.com/nflow-health/nflow/internal/domain/billing"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/utils"
	"github.com/nflow-health/nflow/internal/pkg/validator"
	"github.com/nflow-health/nflow/internal/providers"
	"github.com/nflow-health/nflow/internal/repository/postgres"
	"github.com/nflow-health/nflow/internal/services"
	"github.com/nflow-health/nflow/internal/worker"
	"github.com/nflow-health/nflow/migrations"

	_ "github.com/nflow-health/nflow/docs"
)

var version = "dev"

// @title NFlow API
// @version 1.0
// @description Subscription-gated mental health chat backend.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	utils.ExposeInternalErrors = cfg.Server.IsDevelopment()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorWithErr(err, "Server exited with error")
		_ = log.Close()
		os.Exit(1)
	}
	log.Info("Server stopped")
	_ = log.Close()
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.With("driver", cfg.Database.Driver).Info("Connected to database")

	if cfg.Database.AutoMigrate {
		if err := migrate(conn, cfg.Database.Driver, log); err != nil {
			return err
		}
	}

	// Repositories
	accountRepo := postgres.NewAccountRepository(conn)
	conversationRepo := postgres.NewConversationRepository(conn)
	auditRepo := postgres.NewAuditLogRepository(conn)

	var ledger billing.EventLedger = postgres.NewWebhookEventRepository(conn)
	if cfg.Redis.Enabled {
		redisCache, err := cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		ledger = redisCache
		log.With("addr", cfg.Redis.Addr()).Info("Using Redis webhook ledger")
	}

	// Providers. Interfaces stay nil for disabled providers.
	var (
		paypalHooks  handlers.PayPalWebhooks
		paypalLookup services.SubscriptionLookup
		stripeAPI    handlers.StripeBilling
	)
	if cfg.PayPal.Enabled() {
		pp := providers.NewPayPal(cfg.PayPal)
		paypalHooks, paypalLookup = pp, pp
		log.With("environment", cfg.PayPal.Environment).Info("PayPal enabled")
	}
	if cfg.Stripe.Enabled() {
		stripeAPI = providers.NewStripe(cfg.Stripe)
		log.Info("Stripe enabled")
	}
	assistant := providers.NewOpenAIChat(cfg.LLM)

	var exporter *archive.Exporter
	var archiver worker.Archiver
	if cfg.Archive.Enabled() {
		putter, err := archive.NewS3Putter(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		exporter = archive.NewExporter(conversationRepo, putter, cfg.Archive.Prefix, log.Component("archive"))
		archiver = exporter
		log.With("bucket", cfg.Archive.Bucket).Info("Conversation archive enabled")
	}

	// Services
	auditService := services.NewAuditService(auditRepo, log.Component("audit"))
	accountService := services.NewAccountService(accountRepo, auditService, cfg.Quota.FreeMessageLimit, cfg.Auth.BCryptCost, log.Component("accounts"))
	quotaService := services.NewQuotaService(accountRepo, cfg.Quota.FreeMessageLimit, cfg.Quota.UpgradeURL)
	chatService := services.NewChatService(quotaService, assistant, conversationRepo, log.Component("chat"))
	subscriptionService := services.NewSubscriptionService(accountRepo, ledger, cfg.Redis.EventTTL, paypalLookup, log.Component("billing"))
	moderationService := services.NewModerationService(conversationRepo, auditService, exporter, log.Component("moderation"))

	// Background jobs
	if cfg.Worker.Enabled {
		scheduler := worker.NewScheduler(cfg.Worker, conn, archiver, log.Component("worker"))
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	val := validator.New()
	h := &router.Handlers{
		Health:  handlers.NewHealthHandler(conn, version, log),
		Auth:    handlers.NewAuthHandler(accountService, cfg, log, val),
		Chat:    handlers.NewChatHandler(chatService, quotaService.UpgradeURL(), log, val),
		Billing: handlers.NewBillingHandler(accountService, subscriptionService, paypalHooks, stripeAPI, quotaService.Ceiling(), log, val),
		Admin:   handlers.NewAdminHandler(accountService, moderationService, auditService, log, val),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h, router.Deps{Gate: quotaService, Accounts: accountRepo}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":        srv.Addr,
			"environment": cfg.Server.Environment,
			"version":     version,
		}).Info("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutting down HTTP server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func migrate(conn *sql.DB, driver string, log *logger.Logger) error {
	files, err := migrations.ForDriver(driver)
	if err != nil {
		return err
	}
	start := time.Now()
	ran, err := db.RunMigrations(conn, files)
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"applied":  len(ran),
		"duration": time.Since(start).String(),
	}).Info("Migrations complete")
	return nil
}
