package devapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/validation"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

var errEmailTaken = errors.New("email already registered")

func (s *Server) register(c *fiber.Ctx) error {
	var req domain.RegisterData
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, http.StatusBadRequest, string(apperrors.KindValidation), "invalid payload")
	}

	acc, token, err := s.create(req, domain.RoleCustomer, false)
	switch {
	case errors.Is(err, errEmailTaken):
		return writeError(c, http.StatusConflict, "USER_EXISTS", err.Error())
	case apperrors.IsKind(err, apperrors.KindValidation):
		return writeError(c, http.StatusBadRequest, string(apperrors.KindValidation), apperrors.ToAuthError(err).Message)
	case err != nil:
		return err
	}

	s.logger.Info("account registered", zap.String("user_id", acc.profile.ID))
	return c.Status(http.StatusCreated).JSON(domain.RegisterResponse{
		Message:           "registration successful, check your email to verify the account",
		User:              acc.profile.Clone(),
		VerificationToken: token,
	})
}

func (s *Server) login(c *fiber.Ctx) error {
	var req domain.LoginData
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, http.StatusBadRequest, string(apperrors.KindValidation), "invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return writeError(c, http.StatusBadRequest, string(apperrors.KindValidation), "email and password are required")
	}

	s.mu.Lock()
	acc, ok := s.byEmail[normalizeEmail(req.Email)]
	if !ok || !auth.PasswordMatches(acc.passwordHash, req.Password) {
		s.mu.Unlock()
		return writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	}
	if !acc.profile.IsActive {
		s.mu.Unlock()
		return writeError(c, http.StatusForbidden, "ACCOUNT_DISABLED", "account is disabled")
	}
	if s.requireVerify && !acc.profile.IsEmailVerified {
		s.mu.Unlock()
		return writeError(c, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "verify your email before signing in")
	}
	now := s.now().UTC()
	acc.profile.LastLogin = &now
	profile := acc.profile.Clone()
	s.mu.Unlock()

	token, _, err := s.issuer.Issue(profile.ID)
	if err != nil {
		return err
	}
	return c.JSON(domain.AuthResponse{Message: "login successful", User: profile, Token: token})
}

func (s *Server) confirmEmail(c *fiber.Ctx) error {
	var req domain.EmailConfirmationData
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, http.StatusBadRequest, string(apperrors.KindValidation), "invalid payload")
	}
	if err := validation.Struct(req); err != nil {
		return writeError(c, http.StatusBadRequest, string(apperrors.KindValidation), apperrors.ToAuthError(err).Message)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.verifications[req.Token]
	if !ok {
		return writeError(c, http.StatusBadRequest, "INVALID_TOKEN", "verification token is invalid or already used")
	}
	delete(s.verifications, req.Token)
	if acc, ok := s.byID[id]; ok {
		acc.profile.IsEmailVerified = true
		acc.profile.UpdatedAt = s.now().UTC()
	}
	return c.JSON(domain.EmailConfirmationResponse{Message: "email confirmed"})
}

func (s *Server) profile(c *fiber.Ctx) error {
	claims, token, err := s.bearer(c)
	if err != nil {
		return writeError(c, http.StatusUnauthorized, "INVALID_TOKEN", err.Error())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, revoked := s.revoked[token]; revoked {
		return writeError(c, http.StatusUnauthorized, "INVALID_TOKEN", "credential has been revoked")
	}
	acc, ok := s.byID[claims.UserID]
	if !ok {
		return writeError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	}
	return c.JSON(domain.ProfileResponse{User: acc.profile.Clone()})
}

func (s *Server) logout(c *fiber.Ctx) error {
	_, token, err := s.bearer(c)
	if err != nil {
		return writeError(c, http.StatusUnauthorized, "INVALID_TOKEN", err.Error())
	}

	s.mu.Lock()
	s.revoked[token] = struct{}{}
	s.mu.Unlock()
	return c.JSON(fiber.Map{"message": "logout successful"})
}

func (s *Server) bearer(c *fiber.Ctx) (*auth.Claims, string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return nil, "", errors.New("missing bearer credential")
	}
	claims, err := s.issuer.Verify(parts[1])
	if err != nil {
		return nil, "", errors.New("credential is invalid or expired")
	}
	return claims, parts[1], nil
}

func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(domain.ErrorResponse{
		Error:      code,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}
