package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/storefront-session/internal/domain"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// Type enumerates session event identifiers.
type Type string

const (
	TypeRegistered     Type = "registered"
	TypeLogin          Type = "login"
	TypeEmailConfirmed Type = "email_confirmed"
	TypeLogout         Type = "logout"
	TypeError          Type = "error"
)

// Event is a session notification broadcast by the session context.
type Event struct {
	ID        string                `json:"id"`
	Type      Type                  `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Profile   *domain.PublicProfile `json:"user,omitempty"`
	Message   string                `json:"message,omitempty"`
	Err       *apperrors.AuthError  `json:"-"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(t Type, profile *domain.Profile, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Profile:   profile.Public(),
		Message:   message,
	}
}

// NewErrorEvent wraps a classified failure.
func NewErrorEvent(err *apperrors.AuthError) Event {
	ev := NewEvent(TypeError, nil, err.Message)
	ev.Err = err
	return ev
}
