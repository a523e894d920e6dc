package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/events"
)

// Level is the severity a banner is shown with.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

const defaultHistory = 20

// Banner is a short user-facing line derived from a session event.
type Banner struct {
	EventID   string    `json:"eventId"`
	Level     Level     `json:"level"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationService turns session events into banners.
type NotificationService struct {
	logger *zap.Logger

	mu      sync.Mutex
	recent  []Banner
	history int
}

// NewNotificationService creates the service. history bounds Recent; zero uses the default.
func NewNotificationService(logger *zap.Logger, history int) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if history <= 0 {
		history = defaultHistory
	}
	return &NotificationService{logger: logger, history: history}
}

// Handle is an events.Handler for every session event type.
func (n *NotificationService) Handle(_ context.Context, event events.Event) error {
	banner, ok := n.banner(event)
	if !ok {
		return fmt.Errorf("unsupported event type %q", event.Type)
	}

	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("level", string(banner.Level)),
	}
	if event.Profile != nil {
		fields = append(fields, zap.String("user_id", event.Profile.ID))
	}
	if banner.Level == LevelError {
		n.logger.Warn(banner.Text, fields...)
	} else {
		n.logger.Info(banner.Text, fields...)
	}

	n.mu.Lock()
	n.recent = append(n.recent, banner)
	if len(n.recent) > n.history {
		n.recent = n.recent[len(n.recent)-n.history:]
	}
	n.mu.Unlock()
	return nil
}

// Recent returns the latest banners, oldest first.
func (n *NotificationService) Recent() []Banner {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Banner, len(n.recent))
	copy(out, n.recent)
	return out
}

func (n *NotificationService) banner(event events.Event) (Banner, bool) {
	b := Banner{EventID: event.ID, Level: LevelSuccess, CreatedAt: event.Timestamp}

	switch event.Type {
	case events.TypeLogin:
		b.Text = "Welcome back" + firstName(event)
	case events.TypeRegistered:
		b.Text = "Account created. Check your inbox to confirm your email"
	case events.TypeEmailConfirmed:
		b.Text = "Email address confirmed"
	case events.TypeLogout:
		b.Level = LevelInfo
		b.Text = "You have been signed out"
	case events.TypeError:
		b.Level = LevelError
		b.Text = event.Message
		if b.Text == "" {
			b.Text = "Something went wrong"
		}
	default:
		return Banner{}, false
	}
	return b, true
}

func firstName(event events.Event) string {
	if event.Profile == nil || event.Profile.FirstName == "" {
		return ""
	}
	return ", " + event.Profile.FirstName
}
