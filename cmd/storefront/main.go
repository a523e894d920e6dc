package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/storefront-session/internal/api/http"
	"github.com/spec-kit/storefront-session/internal/api/http/handlers"
	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/config"
	"github.com/spec-kit/storefront-session/internal/events"
	"github.com/spec-kit/storefront-session/internal/observability"
	"github.com/spec-kit/storefront-session/internal/persistence"
	"github.com/spec-kit/storefront-session/internal/remote"
	"github.com/spec-kit/storefront-session/internal/service"
	"github.com/spec-kit/storefront-session/internal/session"
	"github.com/spec-kit/storefront-session/internal/worker"
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

	browser, closeBrowser, err := openBrowserStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open session storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeBrowser()

	metrics := observability.NewMetrics()
	client, err := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout(), logger, remote.WithMetrics(metrics))
	if err != nil {
		logger.Fatal("invalid storefront api url", zap.Error(err))
	}

	dispatcher := events.NewDispatcher(logger)
	notifications := service.NewNotificationService(logger, 0)
	notificationWorker := worker.NewNotificationWorker(dispatcher, notifications)
	notificationWorker.Start()
	defer notificationWorker.Stop()

	store := session.NewStore(persistence.NewMemoryKV(), browser, logger)
	sessionService := session.NewService(client, store, logger)
	sessionContext := session.NewContext(sessionService, dispatcher, logger,
		session.WithExpiryWarning(cfg.Session.ExpiryWarning()),
		session.WithMetrics(metrics),
	)

	if err := sessionContext.Initialize(ctx); err != nil {
		logger.Warn("stored session discarded", zap.Error(err))
	}
	snap := sessionContext.Snapshot()
	logger.Info("session initialized",
		zap.String("status", string(snap.Status)),
		zap.Bool("remember_me", snap.RememberMe),
	)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"session_store": store,
		}),
		Session:           handlers.NewSessionHandler(sessionContext),
		Account:           handlers.NewAccountHandler(sessionContext),
		Metrics:           handlers.NewMetricsHandler(metrics),
		Notifications:     handlers.NewNotificationsHandler(notifications),
		SessionMiddleware: auth.NewSessionMiddleware(sessionContext),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// openBrowserStore returns the KV backing the browser-scoped session lifetime.
func openBrowserStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.KV, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageRedis:
		rdb := persistence.NewRedis(cfg.Redis, logger)
		return persistence.NewRedisKV(rdb.Client, cfg.Storage.Namespace), rdb.Close, nil
	case config.StoragePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return persistence.NewPostgresKV(pg.Pool, cfg.Storage.Namespace), pg.Close, nil
	case config.StorageMemory:
		logger.Warn("browser-scoped sessions are kept in memory and will not survive a restart")
		return persistence.NewMemoryKV(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
