package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/api/dto"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/session"
)

// SessionHandler exposes the session state machine to the browser UI.
type SessionHandler struct {
	session *session.Context
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sc *session.Context) *SessionHandler {
	return &SessionHandler{session: sc}
}

// Get handles GET /session.
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.session.Snapshot())})
}

// Register handles POST /session/register.
func (h *SessionHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	resp, err := h.session.Register(c.UserContext(), req.RegisterData, session.RegisterOptions{AutoLogin: req.AutoLogin})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"message":           resp.Message,
			"user":              resp.User.Public(),
			"verificationToken": resp.VerificationToken,
			"session":           dto.NewSessionResponse(h.session.Snapshot()),
		},
	})
}

// Login handles POST /session/login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	_, err := h.session.Authenticate(c.UserContext(),
		domain.LoginData{Email: req.Email, Password: req.Password},
		session.LoginOptions{RememberMe: req.RememberMe},
	)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.session.Snapshot())})
}

// ConfirmEmail handles POST /session/confirm-email.
func (h *SessionHandler) ConfirmEmail(c *fiber.Ctx) error {
	var req domain.EmailConfirmationData
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	resp, err := h.session.ConfirmEmail(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"message": resp.Message,
			"session": dto.NewSessionResponse(h.session.Snapshot()),
		},
	})
}

// Logout handles POST /session/logout.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	h.session.Logout(c.UserContext())
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.session.Snapshot())})
}

// Refresh handles POST /session/refresh.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	if err := h.session.RefreshProfile(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.session.Snapshot())})
}

// SetRememberMe handles PUT /session/remember-me.
func (h *SessionHandler) SetRememberMe(c *fiber.Ctx) error {
	var req dto.RememberMeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	h.session.SetRememberMe(req.RememberMe)
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.session.Snapshot())})
}

// ClearError handles DELETE /session/error.
func (h *SessionHandler) ClearError(c *fiber.Ctx) error {
	h.session.ClearError()
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.session.Snapshot())})
}
