package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/validation"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// API is the subset of the storefront API the session layer consumes.
type API interface {
	Register(ctx context.Context, data domain.RegisterData) (*domain.RegisterResponse, error)
	Login(ctx context.Context, data domain.LoginData) (*domain.AuthResponse, error)
	ConfirmEmail(ctx context.Context, credential string, data domain.EmailConfirmationData) (*domain.EmailConfirmationResponse, error)
	Profile(ctx context.Context, credential string) (*domain.Profile, error)
	Logout(ctx context.Context, credential string) error
}

// AuthResult is an established session.
type AuthResult struct {
	Profile    *domain.Profile
	Credential string
}

// Service orchestrates remote calls and local persistence.
type Service struct {
	api    API
	store  *Store
	logger *zap.Logger
	now    func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires the API client and store.
func NewService(api API, store *Store, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{api: api, store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Store exposes the underlying session store.
func (s *Service) Store() *Store {
	return s.store
}

// Register creates an account. It never establishes a session.
func (s *Service) Register(ctx context.Context, data domain.RegisterData) (*domain.RegisterResponse, error) {
	if err := validation.Struct(data); err != nil {
		return nil, err
	}

	resp, err := s.api.Register(ctx, data)
	if err != nil {
		return nil, apperrors.ToAuthError(err)
	}
	if resp == nil || resp.User == nil {
		return nil, apperrors.NewUnknownError("invalid registration response", nil)
	}
	return resp, nil
}

// Authenticate logs in and persists the session in the lifetime chosen by rememberMe.
func (s *Service) Authenticate(ctx context.Context, data domain.LoginData, rememberMe bool) (*AuthResult, error) {
	if err := validation.Struct(data); err != nil {
		return nil, err
	}

	resp, err := s.api.Login(ctx, data)
	if err != nil {
		return nil, apperrors.ToAuthError(err)
	}
	if resp == nil || resp.User == nil || resp.Token == "" {
		return nil, apperrors.NewUnknownError("invalid login response", nil)
	}
	if _, err := auth.Decode(resp.Token); err != nil {
		return nil, apperrors.NewInvalidToken("credential could not be decoded", err)
	}
	if auth.IsExpired(resp.Token, s.now()) {
		return nil, apperrors.NewInvalidToken("credential is already expired", nil)
	}

	if err := s.store.Save(ctx, resp.Token, resp.User, rememberMe); err != nil {
		s.clear(ctx)
		return nil, apperrors.NewUnknownError("failed to persist session", err)
	}
	return &AuthResult{Profile: resp.User, Credential: resp.Token}, nil
}

// ConfirmEmail redeems a verification token and, when a profile is cached, marks it verified.
func (s *Service) ConfirmEmail(ctx context.Context, data domain.EmailConfirmationData) (*domain.EmailConfirmationResponse, error) {
	if err := validation.Struct(data); err != nil {
		return nil, err
	}

	cred, err := s.store.Credential(ctx)
	if err != nil {
		s.logger.Warn("confirm email without stored credential", zap.Error(err))
		cred = ""
	}

	resp, err := s.api.ConfirmEmail(ctx, cred, data)
	if err != nil {
		return nil, apperrors.ToAuthError(err)
	}
	if resp == nil {
		resp = &domain.EmailConfirmationResponse{}
	}

	profile, err := s.store.Profile(ctx)
	if err != nil {
		s.logger.Warn("read cached profile", zap.Error(err))
		return resp, nil
	}
	if profile != nil && !profile.IsEmailVerified {
		profile.IsEmailVerified = true
		if err := s.store.SaveProfile(ctx, profile); err != nil {
			s.logger.Warn("persist verified flag", zap.Error(err))
		}
	}
	return resp, nil
}

// Logout notifies the API on a best-effort basis, then clears the store. It never fails.
func (s *Service) Logout(ctx context.Context) {
	cred, err := s.store.Credential(ctx)
	if err != nil {
		s.logger.Warn("read credential for logout", zap.Error(err))
	}
	if cred != "" {
		if err := s.api.Logout(ctx, cred); err != nil {
			s.logger.Warn("remote logout failed",
				zap.String("kind", string(apperrors.KindOf(err))),
				zap.Error(err),
			)
		}
	}
	s.clear(ctx)
}

// CurrentProfile returns the profile of the stored session, or nil. Any failure
// clears the store; it never reports an error.
func (s *Service) CurrentProfile(ctx context.Context) *domain.Profile {
	profile, err := s.resolveProfile(ctx)
	if err != nil {
		s.logger.Debug("current profile unavailable", zap.Error(err))
		s.clear(ctx)
		return nil
	}
	return profile
}

// resolveProfile is CurrentProfile with classified errors. A missing or expired
// credential yields (nil, nil); an expired one also clears the store. The store is
// left intact on fetch errors so the caller can decide.
func (s *Service) resolveProfile(ctx context.Context) (*domain.Profile, error) {
	cred, err := s.store.Credential(ctx)
	if err != nil {
		return nil, apperrors.NewUnknownError("read stored credential", err)
	}
	if cred == "" {
		return nil, nil
	}
	if auth.IsExpired(cred, s.now()) {
		s.clear(ctx)
		return nil, nil
	}

	cached, err := s.store.Profile(ctx)
	if err != nil {
		return nil, apperrors.NewUnknownError("read stored profile", err)
	}
	if cached != nil {
		return cached, nil
	}

	return s.fetchProfile(ctx, cred)
}

// RefreshProfile always fetches the profile from the API and re-caches it.
func (s *Service) RefreshProfile(ctx context.Context) (*domain.Profile, error) {
	cred, err := s.store.Credential(ctx)
	if err != nil {
		return nil, apperrors.NewUnknownError("read stored credential", err)
	}
	if cred == "" {
		return nil, apperrors.NewAuthError(apperrors.KindAuthentication, "no active session")
	}
	if auth.IsExpired(cred, s.now()) {
		return nil, apperrors.NewInvalidToken("session has expired", nil)
	}
	return s.fetchProfile(ctx, cred)
}

// SessionInfo reads the stored session and decodes its timestamps. Store only.
func (s *Service) SessionInfo(ctx context.Context) *domain.SessionInfo {
	stored, err := s.store.Load(ctx)
	if err != nil || stored == nil {
		return nil
	}
	info, err := auth.Decode(stored.Credential)
	if err != nil {
		return nil
	}
	return &domain.SessionInfo{
		Profile:    stored.Profile,
		Credential: stored.Credential,
		IssuedAt:   info.IssuedAt,
		ExpiresAt:  info.ExpiresAt,
	}
}

func (s *Service) fetchProfile(ctx context.Context, cred string) (*domain.Profile, error) {
	profile, err := s.api.Profile(ctx, cred)
	if err != nil {
		return nil, apperrors.ToAuthError(err)
	}
	if profile == nil {
		return nil, apperrors.NewUnknownError("empty profile response", nil)
	}
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		s.logger.Warn("cache fetched profile", zap.Error(err))
	}
	return profile, nil
}

// clear runs even when ctx is already cancelled.
func (s *Service) clear(ctx context.Context) {
	if err := s.store.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("failed to clear stored session", zap.Error(err))
	}
}
