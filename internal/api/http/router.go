package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/api/http/handlers"
	"github.com/spec-kit/storefront-session/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Session           *handlers.SessionHandler
	Account           *handlers.AccountHandler
	Metrics           *handlers.MetricsHandler
	Notifications     *handlers.NotificationsHandler
	SessionMiddleware *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)
	app.Get("/notifications", cfg.Notifications.List)

	sessionGroup := app.Group("/session")
	sessionGroup.Get("", cfg.Session.Get)
	sessionGroup.Post("/register", cfg.Session.Register)
	sessionGroup.Post("/login", cfg.Session.Login)
	sessionGroup.Post("/confirm-email", cfg.Session.ConfirmEmail)
	sessionGroup.Post("/logout", cfg.Session.Logout)
	sessionGroup.Post("/refresh", cfg.Session.Refresh)
	sessionGroup.Put("/remember-me", cfg.Session.SetRememberMe)
	sessionGroup.Delete("/error", cfg.Session.ClearError)

	principal := cfg.SessionMiddleware.Handle
	app.Get("/account", principal, auth.RequireEmailVerified(), cfg.Account.Account)
	app.Get("/staff/session", principal, auth.RequireStaff(), cfg.Account.Principal)
	app.Get("/admin/session", principal, auth.RequireAdmin(), cfg.Account.Principal)
}
