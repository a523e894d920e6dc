// Package devapi is an in-memory stand-in for the storefront API's auth endpoints,
// used for local runs and integration tests.
package devapi

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/config"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/observability"
	"github.com/spec-kit/storefront-session/internal/validation"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

type account struct {
	profile      domain.Profile
	passwordHash string
}

// Server holds accounts, pending verification tokens and revoked credentials.
type Server struct {
	mu            sync.RWMutex
	byEmail       map[string]*account
	byID          map[string]*account
	verifications map[string]string
	revoked       map[string]struct{}

	issuer        *auth.TokenIssuer
	bcryptCost    int
	requireVerify bool
	logger        *zap.Logger
	now           func() time.Time
}

// SeedAccount describes an account created directly, bypassing registration.
type SeedAccount struct {
	domain.RegisterData
	Role     domain.Role
	Verified bool
}

// New builds a server from configuration.
func New(cfg config.DevAPIConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		byEmail:       make(map[string]*account),
		byID:          make(map[string]*account),
		verifications: make(map[string]string),
		revoked:       make(map[string]struct{}),
		issuer:        auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTLMinutes),
		bcryptCost:    cfg.BcryptCost,
		requireVerify: cfg.RequireVerifiedEmail,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock overrides the time source for issued credentials and audit fields.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	s.issuer.WithClock(now)
	return s
}

// App returns a fiber app serving the API under /api.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return writeError(c, fe.Code, "HTTP_ERROR", fe.Message)
			}
			s.logger.Error("devapi handler failed", zap.Error(err))
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		},
	})
	app.Use(observability.RequestLogger(s.logger, nil))

	api := app.Group("/api/auth")
	api.Post("/register", s.register)
	api.Post("/login", s.login)
	api.Post("/confirm-email", s.confirmEmail)
	api.Get("/profile", s.profile)
	api.Post("/logout", s.logout)
	return app
}

// Seed creates an account and returns its profile.
func (s *Server) Seed(seed SeedAccount) (*domain.Profile, error) {
	acc, _, err := s.create(seed.RegisterData, seed.Role, seed.Verified)
	if err != nil {
		return nil, err
	}
	return acc.profile.Clone(), nil
}

// VerificationToken returns the pending verification token for email, if any.
func (s *Server) VerificationToken(email string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return "", false
	}
	for token, id := range s.verifications {
		if id == acc.profile.ID {
			return token, true
		}
	}
	return "", false
}

// Deactivate disables an account so further logins are refused.
func (s *Server) Deactivate(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byEmail[normalizeEmail(email)]
	if ok {
		acc.profile.IsActive = false
	}
	return ok
}

func (s *Server) create(data domain.RegisterData, role domain.Role, verified bool) (*account, string, error) {
	if err := validation.Struct(data); err != nil {
		return nil, "", err
	}
	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.Valid() {
		return nil, "", apperrors.NewValidationError("role is invalid", "role")
	}

	hash, err := auth.HashPassword(data.Password, s.bcryptCost)
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	acc := &account{
		profile: domain.Profile{
			ID:              uuid.NewString(),
			FirstName:       strings.TrimSpace(data.FirstName),
			LastName:        strings.TrimSpace(data.LastName),
			Email:           normalizeEmail(data.Email),
			Phone:           data.Phone,
			Role:            role,
			IsEmailVerified: verified,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		passwordHash: hash,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[acc.profile.Email]; exists {
		return nil, "", errEmailTaken
	}
	s.byEmail[acc.profile.Email] = acc
	s.byID[acc.profile.ID] = acc

	var token string
	if !verified {
		token = uuid.NewString()
		s.verifications[token] = acc.profile.ID
	}
	return acc, token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
