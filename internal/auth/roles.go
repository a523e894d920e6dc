package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/domain"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// RequireAuth rejects callers without an authenticated session.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := authenticated(c); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireEmailVerified rejects authenticated callers whose email is unconfirmed.
func RequireEmailVerified() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := authenticated(c)
		if err != nil {
			return err
		}
		if !principal.EmailVerified {
			return apperrors.NewAuthError(apperrors.KindEmailNotVerified, "email address not verified")
		}
		return c.Next()
	}
}

// RequireRole ensures the caller has exactly role.
func RequireRole(role domain.Role) fiber.Handler {
	return RequireAnyRole(role)
}

// RequireAnyRole ensures the caller has one of the allowed roles.
func RequireAnyRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, err := authenticated(c)
		if err != nil {
			return err
		}
		if _, ok := allowedSet[principal.Role]; !ok {
			return apperrors.NewAuthError(apperrors.KindAuthorization, "insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin allows admins only.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}

// RequireStaff allows staff and admins.
func RequireStaff() fiber.Handler {
	return RequireAnyRole(domain.RoleStaff, domain.RoleAdmin)
}

func authenticated(c *fiber.Ctx) (*Principal, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok || !principal.Authenticated {
		return nil, apperrors.NewAuthError(apperrors.KindAuthentication, "authentication required")
	}
	return principal, nil
}
