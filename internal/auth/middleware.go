package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/domain"
)

const principalKey = "session_principal"

// Principal is the caller as seen by route guards.
type Principal struct {
	SubjectID     string
	Email         string
	Role          domain.Role
	Authenticated bool
	EmailVerified bool
}

// PrincipalSource yields the current principal. The session context implements it.
type PrincipalSource interface {
	Principal() Principal
}

// SessionMiddleware stores the current principal in the request locals.
type SessionMiddleware struct {
	source PrincipalSource
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(source PrincipalSource) *SessionMiddleware {
	return &SessionMiddleware{source: source}
}

// Handle attaches the principal; guards decide what to do with it.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	principal := m.source.Principal()
	c.Locals(principalKey, &principal)
	return c.Next()
}

// PrincipalFromContext retrieves the principal attached by SessionMiddleware.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
