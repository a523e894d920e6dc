package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/config"
	"github.com/spec-kit/storefront-session/internal/devapi"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/observability"
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

	server := devapi.New(cfg.DevAPI, logger)
	if email := os.Getenv("DEVAPI_SEED_ADMIN_EMAIL"); email != "" {
		_, err := server.Seed(devapi.SeedAccount{
			RegisterData: domain.RegisterData{
				FirstName: "Store",
				LastName:  "Admin",
				Email:     email,
				Password:  os.Getenv("DEVAPI_SEED_ADMIN_PASSWORD"),
			},
			Role:     domain.RoleAdmin,
			Verified: true,
		})
		if err != nil {
			logger.Fatal("failed to seed admin account", zap.Error(err))
		}
		logger.Info("seeded admin account", zap.String("email", email))
	}

	app := server.App()
	go func() {
		if err := app.Listen(cfg.DevAPI.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	_ = app.Shutdown()
}
