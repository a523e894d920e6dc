package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/events"
	"github.com/spec-kit/storefront-session/internal/observability"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// DefaultExpiryWarning is how close to expiry a session counts as expiring soon.
const DefaultExpiryWarning = 5 * time.Minute

// RegisterOptions tunes Context.Register.
type RegisterOptions struct {
	AutoLogin bool
}

// LoginOptions tunes Context.Authenticate. A nil RememberMe keeps the current preference.
type LoginOptions struct {
	RememberMe *bool
}

type state struct {
	profile         *domain.Profile
	credential      string
	status          domain.Status
	err             *apperrors.AuthError
	loading         bool
	registering     bool
	loggingIn       bool
	confirmingEmail bool
	rememberMe      bool
}

// Context is the session state machine shared by the gateway, guards and workers.
// Concurrent actions are not serialised; the last one to finish wins.
type Context struct {
	mu    sync.RWMutex
	state state

	service  *Service
	events   *events.Dispatcher
	logger   *zap.Logger
	metrics  *observability.Metrics
	warning  time.Duration
	initOnce singleflight.Group
}

// ContextOption customises a Context.
type ContextOption func(*Context)

// WithExpiryWarning sets the expiring-soon window.
func WithExpiryWarning(d time.Duration) ContextOption {
	return func(c *Context) {
		if d > 0 {
			c.warning = d
		}
	}
}

// WithMetrics counts surfaced errors by kind.
func WithMetrics(m *observability.Metrics) ContextOption {
	return func(c *Context) {
		c.metrics = m
	}
}

// NewContext creates an idle state machine. A nil dispatcher gets a private one.
func NewContext(service *Service, dispatcher *events.Dispatcher, logger *zap.Logger, opts ...ContextOption) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = events.NewDispatcher(logger)
	}
	c := &Context{
		state:   state{status: domain.StatusIdle},
		service: service,
		events:  dispatcher,
		logger:  logger,
		warning: DefaultExpiryWarning,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the dispatcher session events are published on.
func (c *Context) Events() *events.Dispatcher {
	return c.events
}

// Initialize restores the session from the store. Concurrent calls share one check.
// The returned error is the failure that forced a logout, if any.
func (c *Context) Initialize(ctx context.Context) error {
	_, err, _ := c.initOnce.Do("initialize", func() (any, error) {
		return nil, c.initialize(ctx)
	})
	return err
}

func (c *Context) initialize(ctx context.Context) error {
	c.update(func(s *state) {
		s.loading = true
		s.status = domain.StatusLoading
		s.err = nil
	})
	defer c.update(func(s *state) { s.loading = false })

	store := c.service.Store()
	cred, err := store.Credential(ctx)
	if err != nil {
		authErr := apperrors.ToAuthError(apperrors.NewUnknownError("read stored credential", err))
		c.forceLogout(ctx, authErr)
		return authErr
	}
	if cred == "" {
		c.update(func(s *state) { s.status = domain.StatusUnauthenticated })
		return nil
	}

	profile, err := c.service.resolveProfile(ctx)
	if err == nil && profile != nil {
		remember, _ := store.RememberMe(ctx)
		c.update(func(s *state) {
			s.profile = profile
			s.credential = cred
			s.rememberMe = remember
			s.status = domain.StatusAuthenticated
		})
		return nil
	}
	if err == nil {
		c.forceLogout(ctx, nil)
		return nil
	}

	authErr := apperrors.ToAuthError(err)
	if authErr.Kind == apperrors.KindNetwork {
		if cached := c.cachedProfile(ctx, cred); cached != nil {
			c.logger.Warn("api unreachable, keeping cached session", zap.Error(err))
			c.update(func(s *state) {
				s.profile = cached
				s.credential = cred
				s.status = domain.StatusAuthenticated
			})
			return nil
		}
	}

	c.forceLogout(ctx, authErr)
	return authErr
}

// cachedProfile returns a profile usable for offline degradation: the credential must
// still be stored, and a profile must be cached in the store or held in memory.
func (c *Context) cachedProfile(ctx context.Context, cred string) *domain.Profile {
	store := c.service.Store()
	if stored, err := store.Credential(ctx); err != nil || stored != cred {
		return nil
	}
	if profile, err := store.Profile(ctx); err == nil && profile != nil {
		return profile
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.profile != nil && c.state.credential == cred {
		return c.state.profile.Clone()
	}
	return nil
}

func (c *Context) forceLogout(ctx context.Context, cause *apperrors.AuthError) {
	if cause != nil {
		c.logger.Info("discarding stored session", zap.String("kind", string(cause.Kind)), zap.Error(cause))
	}
	c.Logout(ctx)
}

// Register creates an account and, with AutoLogin, signs in with the current remember
// preference. Any failure resets the session to unauthenticated.
func (c *Context) Register(ctx context.Context, data domain.RegisterData, opts RegisterOptions) (*domain.RegisterResponse, error) {
	c.update(func(s *state) {
		s.registering = true
		s.err = nil
	})
	defer c.update(func(s *state) { s.registering = false })

	resp, err := c.service.Register(ctx, data)
	if err == nil && opts.AutoLogin {
		_, err = c.authenticate(ctx, domain.LoginData{Email: data.Email, Password: data.Password}, c.rememberPreference())
	}
	if err != nil {
		c.reset()
		return nil, c.fail(ctx, err)
	}

	c.publish(ctx, events.NewEvent(events.TypeRegistered, resp.User, resp.Message))
	return resp, nil
}

// Authenticate signs in. Failure resets the session to unauthenticated.
func (c *Context) Authenticate(ctx context.Context, data domain.LoginData, opts LoginOptions) (*AuthResult, error) {
	remember := c.rememberPreference()
	if opts.RememberMe != nil {
		remember = *opts.RememberMe
	}

	result, err := c.authenticate(ctx, data, remember)
	if err != nil {
		c.reset()
		return nil, c.fail(ctx, err)
	}
	return result, nil
}

func (c *Context) authenticate(ctx context.Context, data domain.LoginData, remember bool) (*AuthResult, error) {
	c.update(func(s *state) {
		s.loggingIn = true
		s.err = nil
	})
	defer c.update(func(s *state) { s.loggingIn = false })

	result, err := c.service.Authenticate(ctx, data, remember)
	if err != nil {
		return nil, err
	}

	c.update(func(s *state) {
		s.profile = result.Profile.Clone()
		s.credential = result.Credential
		s.status = domain.StatusAuthenticated
		s.rememberMe = remember
	})
	c.publish(ctx, events.NewEvent(events.TypeLogin, result.Profile, ""))
	return result, nil
}

// ConfirmEmail redeems a verification token. Failure keeps the current session.
func (c *Context) ConfirmEmail(ctx context.Context, data domain.EmailConfirmationData) (*domain.EmailConfirmationResponse, error) {
	c.update(func(s *state) {
		s.confirmingEmail = true
		s.err = nil
	})
	defer c.update(func(s *state) { s.confirmingEmail = false })

	resp, err := c.service.ConfirmEmail(ctx, data)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	var profile *domain.Profile
	c.update(func(s *state) {
		if s.profile != nil {
			verified := s.profile.Clone()
			verified.IsEmailVerified = true
			s.profile = verified
			profile = verified
		}
	})
	c.publish(ctx, events.NewEvent(events.TypeEmailConfirmed, profile, resp.Message))
	return resp, nil
}

// Logout always ends unauthenticated with an empty session, whatever the API says.
func (c *Context) Logout(ctx context.Context) {
	c.update(func(s *state) {
		s.loading = true
		s.err = nil
	})

	c.service.Logout(ctx)

	c.update(func(s *state) {
		s.profile = nil
		s.credential = ""
		s.status = domain.StatusUnauthenticated
		s.rememberMe = false
		s.loading = false
	})
	c.publish(ctx, events.NewEvent(events.TypeLogout, nil, ""))
}

// RefreshProfile re-fetches the profile of an authenticated session. Failure logs out.
func (c *Context) RefreshProfile(ctx context.Context) error {
	if !c.Snapshot().IsAuthenticated {
		return nil
	}

	c.update(func(s *state) { s.loading = true })
	profile, err := c.service.RefreshProfile(ctx)
	if err != nil {
		c.logger.Warn("profile refresh failed, logging out", zap.Error(err))
		c.Logout(ctx)
		return err
	}

	c.update(func(s *state) {
		s.profile = profile.Clone()
		s.loading = false
	})
	return nil
}

// SetRememberMe sets the lifetime preference used by the next sign-in.
func (c *Context) SetRememberMe(remember bool) {
	c.update(func(s *state) { s.rememberMe = remember })
}

// ClearError drops the last error and restores the status implied by the session data.
func (c *Context) ClearError() {
	c.update(func(s *state) {
		s.err = nil
		if s.status != domain.StatusError {
			return
		}
		if s.profile != nil && s.credential != "" {
			s.status = domain.StatusAuthenticated
		} else {
			s.status = domain.StatusUnauthenticated
		}
	})
}

// SessionInfo reads the persisted session with its decoded timestamps.
func (c *Context) SessionInfo(ctx context.Context) *domain.SessionInfo {
	return c.service.SessionInfo(ctx)
}

// Snapshot copies the current state and computes the derived facts.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	st := c.state
	c.mu.RUnlock()

	snap := Snapshot{
		Status:          st.status,
		Profile:         st.profile.Clone(),
		Credential:      st.credential,
		Err:             st.err,
		Loading:         st.loading,
		Registering:     st.registering,
		LoggingIn:       st.loggingIn,
		ConfirmingEmail: st.confirmingEmail,
		RememberMe:      st.rememberMe,
	}
	snap.IsAuthenticated = st.status == domain.StatusAuthenticated && st.profile != nil && st.credential != ""
	snap.IsUnauthenticated = st.status == domain.StatusUnauthenticated || (st.profile == nil && st.credential == "")
	snap.IsAnyLoading = st.loading || st.registering || st.loggingIn || st.confirmingEmail

	if st.profile != nil {
		snap.IsEmailVerified = st.profile.IsEmailVerified
		snap.Role = st.profile.Role
		snap.IsAdmin = st.profile.Role == domain.RoleAdmin
		snap.IsStaff = st.profile.Role.IsStaff()
	}

	if st.profile != nil && st.credential != "" {
		if info, err := auth.Decode(st.credential); err == nil {
			expiresAt := info.ExpiresAt
			snap.ExpiresAt = &expiresAt
			remaining := expiresAt.Sub(c.service.Now())
			snap.IsSessionExpiringSoon = remaining > 0 && remaining <= c.warning
		}
	}
	return snap
}

// Principal describes the current caller for route guards.
func (c *Context) Principal() auth.Principal {
	snap := c.Snapshot()
	p := auth.Principal{
		Authenticated: snap.IsAuthenticated,
		EmailVerified: snap.IsEmailVerified,
		Role:          snap.Role,
	}
	if snap.Profile != nil {
		p.SubjectID = snap.Profile.ID
		p.Email = snap.Profile.Email
	}
	return p
}

func (c *Context) rememberPreference() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.rememberMe
}

func (c *Context) reset() {
	c.update(func(s *state) {
		s.profile = nil
		s.credential = ""
		s.status = domain.StatusUnauthenticated
	})
}

// fail records err as the last error, moves to StatusError and publishes it.
func (c *Context) fail(ctx context.Context, err error) *apperrors.AuthError {
	authErr := apperrors.ToAuthError(err)
	c.update(func(s *state) {
		s.err = authErr
		s.status = domain.StatusError
	})
	c.metrics.RecordError(string(authErr.Kind))
	c.publish(ctx, events.NewErrorEvent(authErr))
	return authErr
}

func (c *Context) update(fn func(*state)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

func (c *Context) publish(ctx context.Context, ev events.Event) {
	c.events.Publish(context.WithoutCancel(ctx), ev)
}
