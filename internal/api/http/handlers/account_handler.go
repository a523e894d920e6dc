package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/session"
)

// AccountHandler serves the guarded routes.
type AccountHandler struct {
	session *session.Context
}

// NewAccountHandler constructs handler.
func NewAccountHandler(sc *session.Context) *AccountHandler {
	return &AccountHandler{session: sc}
}

// Account handles GET /account: profile plus persisted session timestamps.
func (h *AccountHandler) Account(c *fiber.Ctx) error {
	snap := h.session.Snapshot()
	data := fiber.Map{"user": snap.PublicProfile()}
	if info := h.session.SessionInfo(c.UserContext()); info != nil {
		data["issuedAt"] = info.IssuedAt
		data["expiresAt"] = info.ExpiresAt
		data["isSessionExpiringSoon"] = snap.IsSessionExpiringSoon
	}
	return c.JSON(fiber.Map{"data": data})
}

// Principal handles GET /staff/session and GET /admin/session.
func (h *AccountHandler) Principal(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"userId":  principal.SubjectID,
			"email":   principal.Email,
			"role":    principal.Role,
			"isStaff": principal.Role.IsStaff(),
		},
	})
}
