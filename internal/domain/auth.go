package domain

import "time"

// Status is the state machine's top-level session status.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusError           Status = "error"
)

// RegisterData is the sign-up form payload.
type RegisterData struct {
	FirstName string `json:"firstName" validate:"notblank"`
	LastName  string `json:"lastName" validate:"notblank"`
	Email     string `json:"email" validate:"notblank,email"`
	Password  string `json:"password" validate:"required,password"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,phone"`
}

// LoginData is the sign-in form payload.
type LoginData struct {
	Email    string `json:"email" validate:"notblank,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// EmailConfirmationData carries the emailed verification token.
type EmailConfirmationData struct {
	Token string `json:"token" validate:"notblank"`
}

// AuthResponse is returned by the remote login endpoint.
type AuthResponse struct {
	Message string   `json:"message"`
	User    *Profile `json:"user"`
	Token   string   `json:"token"`
}

// RegisterResponse is returned by the remote register endpoint.
type RegisterResponse struct {
	Message           string   `json:"message"`
	User              *Profile `json:"user"`
	VerificationToken string   `json:"verificationToken"`
}

// EmailConfirmationResponse is returned by the remote confirm-email endpoint.
type EmailConfirmationResponse struct {
	Message string `json:"message"`
}

// ProfileResponse wraps the remote profile endpoint body.
type ProfileResponse struct {
	User *Profile `json:"user"`
}

// ErrorResponse is the remote API's error body.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
}

// SessionInfo describes the stored session together with its decoded timestamps.
type SessionInfo struct {
	Profile    *Profile  `json:"user"`
	Credential string    `json:"token"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
