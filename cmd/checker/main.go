package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ukudarovv/instachecker-sub000/internal/auth"
	"github.com/ukudarovv/instachecker-sub000/internal/config"
	"github.com/ukudarovv/instachecker-sub000/internal/database"
	"github.com/ukudarovv/instachecker-sub000/internal/handlers"
	"github.com/ukudarovv/instachecker-sub000/internal/lookup"
	middlewareCustom "github.com/ukudarovv/instachecker-sub000/internal/middleware"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/notify"
	"github.com/ukudarovv/instachecker-sub000/internal/orchestrator"
	"github.com/ukudarovv/instachecker-sub000/internal/proxyhealth"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
	"github.com/ukudarovv/instachecker-sub000/internal/routes"
	"github.com/ukudarovv/instachecker-sub000/internal/scheduler"
	"github.com/ukudarovv/instachecker-sub000/internal/vault"
	"github.com/ukudarovv/instachecker-sub000/internal/verify"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	ownerRepo := repositories.NewOwnerRepository(db)
	targetRepo := repositories.NewTargetRepository(db)
	proxyRepo := repositories.NewProxyRepository(db)
	keyRepo := repositories.NewLookupKeyRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	// Credential vault; passthrough when no key is configured
	cipher, err := vault.New(cfg.Vault.Key)
	if err != nil {
		logger.Error("failed to initialize vault", slog.Any("error", err))
		os.Exit(1)
	}

	// Proxy health registry
	registry := proxyhealth.NewRegistry(proxyRepo, proxyhealth.Config{
		CooldownThreshold: cfg.Check.CooldownThreshold,
		CooldownBase:      cfg.Check.CooldownBase,
		CooldownMax:       cfg.Check.CooldownMax,
	}, logger)

	// Quota-limited lookup client
	lookupClient := lookup.NewClient(keyRepo, cipher, lookup.Config{
		BaseURL:       cfg.Check.LookupBaseURL,
		DailyLimit:    cfg.Check.DailyKeyQuota,
		FailThreshold: cfg.Check.KeyFailThreshold,
		Timeout:       cfg.Check.LookupTimeout,
	}, logger)

	// Verification backends
	verifyCfg := verify.Config{
		RenderTimeout: cfg.Check.RenderTimeout,
		SnapshotDir:   cfg.Check.SnapshotDir,
	}
	renderer := verify.NewHTTPRenderer(cfg.Check.SnapshotDir, logger)
	sessionBackend := verify.NewSessionBackend(sessionRepo, cipher, renderer, verifyCfg, logger)
	proxyBackend := verify.NewProxyBackend(registry, cipher, renderer, proxyhealth.Strategy(cfg.Check.ProxyStrategy), verifyCfg, logger)
	altLookupBackend := verify.NewAltLookupBackend(verifyCfg, logger)
	fallbackChain := verify.DefaultChain(altLookupBackend, renderer, verifyCfg, logger)

	// Orchestrator and scheduler
	orch := orchestrator.New(lookupClient, sessionBackend, proxyBackend, altLookupBackend, fallbackChain, cfg.Check.TrustDeepVerify, logger)

	notifier, err := buildNotifier(&cfg.Notify, logger)
	if err != nil {
		logger.Error("failed to initialize notifier", slog.Any("error", err))
		os.Exit(1)
	}

	sched := scheduler.New(targetRepo, ownerRepo, orch, notifier, scheduler.Config{
		Interval:         cfg.Check.SchedulerInterval,
		Phase1Delay:      cfg.Check.Phase1Delay,
		Phase2Delay:      cfg.Check.Phase2Delay,
		OwnerConcurrency: cfg.Check.OwnerConcurrency,
	}, logger)

	// Token manager for the ops API
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	// Bootstrap first owner if configured
	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureBootstrapOwner(bootstrapCtx, ownerRepo, tokenManager, logger); err != nil {
		logger.Error("failed to bootstrap owner", slog.Any("error", err))
	}
	bootstrapCancel()

	// Initialize handlers
	ownerHandler := handlers.NewOwnerHandler(ownerRepo)
	targetHandler := handlers.NewTargetHandler(targetRepo)
	proxyHandler := handlers.NewProxyHandler(proxyRepo, cipher)
	keyHandler := handlers.NewKeyHandler(keyRepo, cipher)
	sessionHandler := handlers.NewSessionHandler(sessionRepo, cipher)
	runHandler := handlers.NewRunHandler(sched)

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, tokenManager, ownerHandler, targetHandler, proxyHandler, keyHandler, sessionHandler, runHandler)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the scheduler
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()

	go sched.Start(schedCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	schedCancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// buildNotifier selects the delivery driver
func buildNotifier(cfg *config.NotifyConfig, logger *slog.Logger) (notify.Notifier, error) {
	switch cfg.Driver {
	case "ses":
		return notify.NewAWSSESNotifier(cfg.AWSRegion, cfg.FromAddress, logger)
	default:
		return notify.NewLogNotifier(logger), nil
	}
}

// ensureBootstrapOwner creates the first owner and logs an access token if
// BOOTSTRAP_OWNER_EMAIL is set and no such owner exists yet.
func ensureBootstrapOwner(ctx context.Context, ownerRepo repositories.OwnerRepository, tm *auth.TokenManager, logger *slog.Logger) error {
	email := os.Getenv("BOOTSTRAP_OWNER_EMAIL")
	if email == "" {
		logger.Info("no BOOTSTRAP_OWNER_EMAIL set, skipping owner bootstrap")
		return nil
	}

	owners, err := ownerRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list owners: %w", err)
	}
	for _, o := range owners {
		if o.Email == email {
			logger.Info("bootstrap owner already exists")
			return nil
		}
	}

	now := time.Now()
	owner := &models.Owner{
		ID:        uuid.New().String(),
		Email:     email,
		Mode:      models.ModeAPISession,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ownerRepo.Create(ctx, owner); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil
		}
		return fmt.Errorf("failed to create owner: %w", err)
	}

	token, err := tm.GenerateToken(owner.ID, owner.Email)
	if err != nil {
		return fmt.Errorf("failed to mint bootstrap token: %w", err)
	}

	logger.Info("bootstrap owner created", slog.String("owner_id", owner.ID))

	// The token is credential material; print it once instead of logging it
	fmt.Fprintf(os.Stderr, "bootstrap token for %s: %s\n", email, token)

	return nil
}
