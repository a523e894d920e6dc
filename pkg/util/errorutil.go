package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies session failures into a closed set.
type Kind string

const (
	KindValidation       Kind = "VALIDATION_ERROR"
	KindAuthentication   Kind = "AUTHENTICATION_ERROR"
	KindAuthorization    Kind = "AUTHORIZATION_ERROR"
	KindEmailNotVerified Kind = "EMAIL_NOT_VERIFIED"
	KindUserNotFound     Kind = "USER_NOT_FOUND"
	KindInvalidToken     Kind = "INVALID_TOKEN"
	KindNetwork          Kind = "NETWORK_ERROR"
	KindUnknown          Kind = "UNKNOWN_ERROR"
)

// serverEmailUnverified is the "error" code the remote API uses on 403 for unverified accounts.
const serverEmailUnverified = "EMAIL_NOT_VERIFIED"

// AuthError is the uniform error shape returned by every session operation.
type AuthError struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind onto the status used when the error crosses the gateway.
func (e *AuthError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication, KindInvalidToken:
		return http.StatusUnauthorized
	case KindAuthorization, KindEmailNotVerified:
		return http.StatusForbidden
	case KindUserNotFound:
		return http.StatusNotFound
	case KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewAuthError constructs an AuthError.
func NewAuthError(kind Kind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

func NewValidationError(message, field string) error {
	return &AuthError{Kind: KindValidation, Message: message, Field: field}
}

func NewInvalidToken(message string, err error) error {
	return &AuthError{Kind: KindInvalidToken, Message: message, Err: err}
}

func NewNetworkError(err error) error {
	return &AuthError{
		Kind:    KindNetwork,
		Message: "connection error, check your internet connection",
		Err:     err,
	}
}

func NewUnknownError(message string, err error) error {
	if message == "" {
		message = "an unexpected error occurred"
	}
	return &AuthError{Kind: KindUnknown, Message: message, Err: err}
}

// FromHTTPStatus classifies a non-2xx response from the remote API.
// code is the machine-readable "error" field of the response body, if any.
func FromHTTPStatus(status int, code, message string) *AuthError {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		return NewAuthError(KindValidation, message)
	case http.StatusUnauthorized:
		return NewAuthError(KindAuthentication, message)
	case http.StatusForbidden:
		if code == serverEmailUnverified {
			return NewAuthError(KindEmailNotVerified, message)
		}
		return NewAuthError(KindAuthorization, message)
	case http.StatusNotFound:
		return NewAuthError(KindUserNotFound, message)
	default:
		return NewAuthError(KindUnknown, message)
	}
}

// ToAuthError converts arbitrary errors to AuthError. Context cancellation and
// deadline errors count as "no response received".
func ToAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewNetworkError(err).(*AuthError)
	}
	return NewUnknownError("", err).(*AuthError)
}

// KindOf reports the kind of err, or the empty string for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return ToAuthError(err).Kind
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
