package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/handlers"
	"github.com/pinaka-makhana/storefront/internal/payments"
	"github.com/pinaka-makhana/storefront/internal/payments/bridge"
	"github.com/pinaka-makhana/storefront/internal/platform/auth"
	"github.com/pinaka-makhana/storefront/internal/platform/config"
	"github.com/pinaka-makhana/storefront/internal/platform/events"
	"github.com/pinaka-makhana/storefront/internal/platform/idempotency"
	"github.com/pinaka-makhana/storefront/internal/platform/observability"
	"github.com/pinaka-makhana/storefront/internal/platform/secrets"
	"github.com/pinaka-makhana/storefront/internal/restclient"
	"github.com/pinaka-makhana/storefront/internal/smoke"
)

const sweepBatchSize = 200

func main() {
	started := time.Now()
	logger, err := observability.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger = logger.Named("storefront")

	ctx := context.Background()

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close failed", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger = logger.With(zap.String("environment", cfg.Environment))

	httpClient := &http.Client{Timeout: cfg.Backend.Timeout}
	client, err := restclient.New(cfg.Backend.BaseURL,
		restclient.WithHTTPClient(httpClient),
		restclient.WithLogger(logger.Named("backend")),
	)
	if err != nil {
		logger.Fatal("invalid backend base url", zap.Error(err))
	}
	api := backend.New(client)
	sessions := auth.NewSessions()

	broker := bridge.NewBroker(bridge.WithTTL(cfg.Payments.AttemptTTL))

	var outcomeSink payments.OutcomeSink
	var pubsubClient *pubsub.Client
	if projectID := strings.TrimSpace(cfg.PubSub.ProjectID); projectID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, projectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		publisher, err := events.NewPubSubOutcomePublisher(pubsubClient.Topic(cfg.PubSub.PaymentTopic))
		if err != nil {
			logger.Fatal("failed to initialise payment outcome publisher", zap.Error(err))
		}
		defer publisher.Close()
		outcomeSink = publisher
	}

	orch, err := newOrchestrator(cfg, broker, outcomeSink, logger)
	if err != nil {
		logger.Fatal("failed to initialise payment orchestrator", zap.Error(err))
	}

	var idempotencyStore idempotency.Store = idempotency.NewMemoryStore()
	var firestoreClient *firestore.Client
	if projectID := strings.TrimSpace(cfg.Firestore.ProjectID); projectID != "" {
		firestoreClient, err = firestore.NewClient(ctx, projectID)
		if err != nil {
			logger.Fatal("failed to initialise firestore client", zap.Error(err))
		}
		idempotencyStore = idempotency.NewFirestoreStore(firestoreClient)
	} else {
		logger.Info("idempotency keys kept in memory; set STOREFRONT_FIRESTORE_PROJECT_ID to share them across instances")
	}
	idempotencyMiddleware := idempotency.Middleware(idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	startSweeper(cleanupCtx, &cleanupWG, cfg.Idempotency.CleanupInterval, func(now time.Time) {
		removed, err := idempotencyStore.Sweep(cleanupCtx, now, sweepBatchSize)
		if err != nil {
			logger.Warn("idempotency cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			logger.Debug("idempotency keys removed", zap.Int("count", removed))
		}
	})
	startSweeper(cleanupCtx, &cleanupWG, cfg.Payments.AttemptTTL, func(now time.Time) {
		if removed := broker.Sweep(now); removed > 0 {
			logger.Debug("payment attempts expired", zap.Int("count", removed))
		}
	})

	authHandlers := handlers.NewAuthHandlers(api, sessions)
	catalogHandlers := handlers.NewCatalogHandlers(api)
	cartHandlers := handlers.NewCartHandlers(api, sessions)
	orderHandlers := handlers.NewOrderHandlers(api, sessions)
	checkoutHandlers := handlers.NewCheckoutHandlers(api, sessions, orch, broker,
		handlers.WithIdempotency(idempotencyMiddleware),
	)
	adminHandlers := handlers.NewAdminHandlers(api)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(cfg, started)),
		handlers.WithHealthChecks(handlers.DependencyCheck{
			Name:    "backend",
			Timeout: cfg.Backend.Timeout,
			Check: func(ctx context.Context) error {
				_, err := smoke.Connection(ctx, api, true)
				return err
			},
		}),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		sessions.Attach,
	}

	router := handlers.NewRouter(
		handlers.WithBasePath(cfg.Server.BasePath),
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithProductRoutes(catalogHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithAdminMiddlewares(sessions.RequireAdmin),
		handlers.WithAdminRoutes(func(r chi.Router) {
			catalogHandlers.AdminRoutes(r)
			orderHandlers.AdminRoutes(r)
			adminHandlers.Routes(r)
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("backend", client.BaseURL()))
	go func() {
		serverLogger.Info("storefront gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	if firestoreClient != nil {
		if err := firestoreClient.Close(); err != nil {
			logger.Warn("firestore client close failed", zap.Error(err))
		}
	}
	if pubsubClient != nil {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
}

func newOrchestrator(cfg config.Config, broker *bridge.Broker, sink payments.OutcomeSink, logger *zap.Logger) (*payments.Orchestrator, error) {
	probes := &http.Client{Timeout: 10 * time.Second}
	gateways := payments.Gateways{
		Razorpay:   bridge.NewRazorpay(broker, bridge.NewScriptProbe("razorpay", cfg.Payments.RazorpayScriptURL, probes)),
		GooglePay:  bridge.NewGooglePay(broker, bridge.NewScriptProbe("googlepay", cfg.Payments.GooglePayScriptURL, probes)),
		Paytm:      bridge.NewPaytm(broker, bridge.NewScriptProbe("paytm", bridge.PaytmScriptURL(cfg.Payments.PaytmScriptBaseURL, cfg.Payments.PaytmMerchantID), probes)),
		Redirector: bridge.NewRedirector(broker),
	}

	opts := []payments.Option{
		payments.WithMerchant(payments.Merchant{
			RazorpayKeyID:        cfg.Payments.RazorpayKeyID,
			PaytmMerchantID:      cfg.Payments.PaytmMerchantID,
			GooglePayMerchantID:  cfg.Payments.GooglePayMerchantID,
			GooglePayEnvironment: cfg.Payments.GooglePayEnvironment,
			PayeeVPA:             cfg.Payments.UPIPayeeVPA,
			Name:                 cfg.Payments.MerchantName,
			URL:                  cfg.Payments.MerchantURL,
		}),
		payments.WithLogger(logger.Named("payments")),
	}
	if sink != nil {
		opts = append(opts, payments.WithOutcomeSink(sink))
	}
	// Glue is bound per request to the caller's session.
	return payments.NewOrchestrator(gateways, nil, opts...)
}

func startSweeper(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, sweep func(time.Time)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				sweep(now)
			}
		}
	}()
}

// newSecretFetcher resolves secret:// config values. Its own settings come from the
// plain environment because config is not loaded yet.
func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		value, _, err := config.Lookup(key)
		if err != nil {
			logger.Warn("config lookup failed", zap.String("key", key), zap.Error(err))
			return ""
		}
		return strings.TrimSpace(value)
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(lookup("STOREFRONT_SECRETS_PROJECT_ID")),
	}
	if fallback := lookup("STOREFRONT_SECRETS_FALLBACK_FILE"); fallback != "" {
		opts = append(opts, secrets.WithFallbackFile(fallback))
	}
	if credentials := lookup("STOREFRONT_SECRETS_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func buildInfoFromEnv(cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("STOREFRONT_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("STOREFRONT_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Environment,
		StartedAt:   started,
	}
}
