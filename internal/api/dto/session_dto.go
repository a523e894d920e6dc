package dto

import (
	"time"

	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/session"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// RegisterRequest is the sign-up form plus the auto-login switch.
type RegisterRequest struct {
	domain.RegisterData
	AutoLogin bool `json:"autoLogin"`
}

// LoginRequest payload for sign-in. A missing rememberMe keeps the current preference.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe *bool  `json:"rememberMe,omitempty"`
}

// RememberMeRequest updates the lifetime preference.
type RememberMeRequest struct {
	RememberMe bool `json:"rememberMe"`
}

// ErrorBody mirrors the storefront API's error shape, plus the failing field.
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
}

// LastError is the state machine's last failure.
type LastError struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
}

// SessionResponse renders a session snapshot.
type SessionResponse struct {
	Status                domain.Status         `json:"status"`
	User                  *domain.PublicProfile `json:"user"`
	Token                 string                `json:"token,omitempty"`
	Error                 *LastError            `json:"error,omitempty"`
	IsAuthenticated       bool                  `json:"isAuthenticated"`
	IsEmailVerified       bool                  `json:"isEmailVerified"`
	Role                  domain.Role           `json:"role,omitempty"`
	IsAdmin               bool                  `json:"isAdmin"`
	IsStaff               bool                  `json:"isStaff"`
	IsLoading             bool                  `json:"isLoading"`
	RememberMe            bool                  `json:"rememberMe"`
	IsSessionExpiringSoon bool                  `json:"isSessionExpiringSoon"`
	ExpiresAt             *time.Time            `json:"expiresAt,omitempty"`
}

// NewErrorBody builds the wire error for err.
func NewErrorBody(err *apperrors.AuthError, status int, now time.Time) ErrorBody {
	return ErrorBody{
		Error:      string(err.Kind),
		Message:    err.Message,
		Field:      err.Field,
		StatusCode: status,
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
}

// NewSessionResponse converts a snapshot for the wire.
func NewSessionResponse(snap session.Snapshot) SessionResponse {
	resp := SessionResponse{
		Status:                snap.Status,
		User:                  snap.PublicProfile(),
		Token:                 snap.Credential,
		IsAuthenticated:       snap.IsAuthenticated,
		IsEmailVerified:       snap.IsEmailVerified,
		Role:                  snap.Role,
		IsAdmin:               snap.IsAdmin,
		IsStaff:               snap.IsStaff,
		IsLoading:             snap.IsAnyLoading,
		RememberMe:            snap.RememberMe,
		IsSessionExpiringSoon: snap.IsSessionExpiringSoon,
		ExpiresAt:             snap.ExpiresAt,
	}
	if snap.Err != nil {
		resp.Error = &LastError{Kind: snap.Err.Kind, Message: snap.Err.Message, Field: snap.Err.Field}
	}
	return resp
}
