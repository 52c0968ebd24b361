package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/aster-goods/commerce/internal/di"
	"github.com/aster-goods/commerce/internal/handlers"
	"github.com/aster-goods/commerce/internal/platform/config"
	pfirestore "github.com/aster-goods/commerce/internal/platform/firestore"
	"github.com/aster-goods/commerce/internal/platform/idempotency"
	"github.com/aster-goods/commerce/internal/platform/notify"
	"github.com/aster-goods/commerce/internal/platform/observability"
	"github.com/aster-goods/commerce/internal/repositories"
	firestoreRepo "github.com/aster-goods/commerce/internal/repositories/firestore"
	"github.com/aster-goods/commerce/internal/repositories/memory"
	"github.com/aster-goods/commerce/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	registry, firestoreProvider, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	notifier, notifierCleanup, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise order notifier", zap.Error(err))
	}
	defer notifierCleanup()

	metrics := observability.NewOrderMetrics(nil, logger.Named("metrics"))

	container, err := di.NewContainer(ctx, cfg, registry, di.ContainerDeps{
		Logger:   logger,
		Notifier: notifier,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}

	var readinessChecks []handlers.ReadinessCheck
	if firestoreProvider != nil {
		readinessChecks = append(readinessChecks, func(ctx context.Context) error {
			_, err := firestoreProvider.Client(ctx)
			return err
		})
	}

	idempotencyStore := buildIdempotencyStore(ctx, firestoreProvider, logger)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		idempotencyMiddleware,
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(readinessChecks)),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(container.Services.Orders).Routes),
		handlers.WithInventoryRoutes(handlers.NewInventoryHandlers(container.Services.Inventory).Routes),
		handlers.WithInternalRoutes(handlers.NewInternalHandlers(container.Services.Expiry, time.Now).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepTicker := time.NewTicker(cfg.Inventory.SweepInterval)
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		sweepLogger := logger.Named("sweep")
		for {
			select {
			case <-sweepTicker.C:
				runCtx, cancel := context.WithTimeout(sweepCtx, time.Minute)
				runCtx = observability.WithLogger(runCtx, sweepLogger)
				result, err := container.Services.Expiry.ExpireReservations(runCtx, time.Now())
				cancel()
				if err != nil {
					sweepLogger.Warn("reservation sweep failed", zap.Error(err))
					continue
				}
				if result.Expired > 0 || result.Failed > 0 {
					sweepLogger.Info("reservation sweep completed",
						zap.Int("expired", result.Expired),
						zap.Int("skipped", result.Skipped),
						zap.Int("failed", result.Failed),
					)
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		sweepWG.Add(1)
		go func() {
			defer sweepWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(sweepCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency records removed", zap.Int("count", removed))
					}
				case <-sweepCtx.Done():
					return
				}
			}
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepTicker.Stop()
	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildRegistry selects the persistence backend. Firestore is used whenever a
// project id or emulator host is configured; otherwise the process falls back
// to the in-memory registry, which suits local development only.
func buildRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, *pfirestore.Provider, error) {
	if cfg.Firestore.ProjectID == "" && cfg.Firestore.EmulatorHost == "" {
		logger.Warn("no firestore project configured; using in-memory repositories")
		return memory.NewRegistry(), nil, nil
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := provider.Client(ctx); err != nil {
		return nil, nil, fmt.Errorf("initialise firestore client: %w", err)
	}
	registry, err := firestoreRepo.NewRegistry(provider)
	if err != nil {
		return nil, nil, err
	}
	return registry, provider, nil
}

// buildIdempotencyStore prefers the Firestore-backed store so replayed
// responses survive restarts; the in-memory store covers local development.
func buildIdempotencyStore(ctx context.Context, provider *pfirestore.Provider, logger *zap.Logger) idempotency.Store {
	if provider == nil {
		return idempotency.NewMemoryStore()
	}
	client, err := provider.Client(ctx)
	if err != nil {
		logger.Warn("firestore unavailable for idempotency store; using in-memory store", zap.Error(err))
		return idempotency.NewMemoryStore()
	}
	return idempotency.NewFirestoreStore(client)
}

// buildNotifier wires the Pub/Sub order notification publisher. An empty topic
// disables publishing and the services fall back to their no-op path.
func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (services.OrderNotificationPublisher, func(), error) {
	if cfg.PubSub.Topic == "" {
		logger.Info("order notifications disabled; no pubsub topic configured")
		return nil, func() {}, nil
	}
	if cfg.PubSub.ProjectID == "" {
		return nil, func() {}, errors.New("pubsub topic configured without a project id")
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, func() {}, fmt.Errorf("initialise pubsub client: %w", err)
	}

	topic := client.Topic(cfg.PubSub.Topic)
	publisher, err := notify.NewPubSubOrderPublisher(topic)
	if err != nil {
		topic.Stop()
		_ = client.Close()
		return nil, func() {}, err
	}

	cleanup := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	return publisher, cleanup, nil
}
