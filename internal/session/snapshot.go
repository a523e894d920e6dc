package session

import (
	"time"

	"github.com/spec-kit/storefront-session/internal/domain"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// Snapshot is a consistent copy of the state machine with its derived facts.
type Snapshot struct {
	Status          domain.Status
	Profile         *domain.Profile
	Credential      string
	Err             *apperrors.AuthError
	Loading         bool
	Registering     bool
	LoggingIn       bool
	ConfirmingEmail bool
	RememberMe      bool

	IsAuthenticated       bool
	IsUnauthenticated     bool
	IsAnyLoading          bool
	IsEmailVerified       bool
	Role                  domain.Role
	IsAdmin               bool
	IsStaff               bool
	IsSessionExpiringSoon bool
	ExpiresAt             *time.Time
}

// PublicProfile is the profile without account-state fields, or nil.
func (s Snapshot) PublicProfile() *domain.PublicProfile {
	return s.Profile.Public()
}

// HasRole reports whether the profile has exactly role.
func (s Snapshot) HasRole(role domain.Role) bool {
	return s.Profile != nil && s.Profile.Role == role
}

// HasAnyRole reports whether the profile has one of roles.
func (s Snapshot) HasAnyRole(roles ...domain.Role) bool {
	if s.Profile == nil {
		return false
	}
	for _, role := range roles {
		if s.Profile.Role == role {
			return true
		}
	}
	return false
}
