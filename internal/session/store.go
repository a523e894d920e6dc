package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/persistence"
)

// Storage keys, identical in both lifetimes.
const (
	KeyCredential = "auth_token"
	KeyProfile    = "auth_user"
	KeyRememberMe = "auth_remember_me"
)

var errIncompleteSession = errors.New("session requires both credential and profile")

// StoredSession is a complete credential/profile pair read back from one lifetime.
type StoredSession struct {
	Credential string
	Profile    *domain.Profile
	RememberMe bool
}

// Store persists sessions across a tab-scoped and a browser-scoped lifetime.
type Store struct {
	tab     persistence.KV
	browser persistence.KV
	logger  *zap.Logger
}

// NewStore binds the two lifetimes.
func NewStore(tab, browser persistence.KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{tab: tab, browser: browser, logger: logger}
}

// Save writes the pair into the lifetime selected by rememberMe, drops any pair
// left in the other lifetime, and mirrors the flag into the browser lifetime.
func (s *Store) Save(ctx context.Context, credential string, profile *domain.Profile, rememberMe bool) error {
	if credential == "" || profile == nil {
		return errIncompleteSession
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	target, other := s.lifetimes(rememberMe)
	if err := target.Set(ctx, KeyCredential, credential); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if err := target.Set(ctx, KeyProfile, string(raw)); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if err := s.browser.Set(ctx, KeyRememberMe, strconv.FormatBool(rememberMe)); err != nil {
		return fmt.Errorf("save remember flag: %w", err)
	}
	if err := other.Delete(ctx, KeyCredential, KeyProfile); err != nil {
		s.logger.Warn("failed to drop stale session half", zap.Error(err))
	}
	return nil
}

// Load returns the stored session, or nil when neither lifetime holds a complete,
// parseable pair. The lifetime named by the remember flag is consulted first.
func (s *Store) Load(ctx context.Context) (*StoredSession, error) {
	remember, err := s.RememberMe(ctx)
	if err != nil {
		return nil, err
	}

	for _, browserScoped := range []bool{remember, !remember} {
		kv, _ := s.lifetimes(browserScoped)
		cred, profile, err := s.readPair(ctx, kv)
		if err != nil {
			return nil, err
		}
		if cred != "" && profile != nil {
			return &StoredSession{Credential: cred, Profile: profile, RememberMe: browserScoped}, nil
		}
	}
	return nil, nil
}

// Clear removes credential, profile and flag from both lifetimes. Every delete is
// attempted even when an earlier one fails.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(
		s.tab.Delete(ctx, KeyCredential, KeyProfile, KeyRememberMe),
		s.browser.Delete(ctx, KeyCredential, KeyProfile, KeyRememberMe),
	)
}

// Credential returns the stored credential from either lifetime, or "".
func (s *Store) Credential(ctx context.Context) (string, error) {
	remember, err := s.RememberMe(ctx)
	if err != nil {
		return "", err
	}
	preferred, other := s.lifetimes(remember)
	for _, kv := range []persistence.KV{preferred, other} {
		val, ok, err := kv.Get(ctx, KeyCredential)
		if err != nil {
			return "", fmt.Errorf("read credential: %w", err)
		}
		if ok && val != "" {
			return val, nil
		}
	}
	return "", nil
}

// Profile returns the cached profile from either lifetime, or nil. An unparseable
// entry counts as absent.
func (s *Store) Profile(ctx context.Context) (*domain.Profile, error) {
	remember, err := s.RememberMe(ctx)
	if err != nil {
		return nil, err
	}
	preferred, other := s.lifetimes(remember)
	for _, kv := range []persistence.KV{preferred, other} {
		profile, err := s.readProfile(ctx, kv)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			return profile, nil
		}
	}
	return nil, nil
}

// SaveProfile replaces the cached profile in the lifetime named by the remember flag.
func (s *Store) SaveProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil {
		return errIncompleteSession
	}
	remember, err := s.RememberMe(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	target, _ := s.lifetimes(remember)
	if err := target.Set(ctx, KeyProfile, string(raw)); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// RememberMe reads the mirrored flag. Missing or malformed values read as false.
func (s *Store) RememberMe(ctx context.Context) (bool, error) {
	val, ok, err := s.browser.Get(ctx, KeyRememberMe)
	if err != nil {
		return false, fmt.Errorf("read remember flag: %w", err)
	}
	if !ok {
		return false, nil
	}
	remember, err := strconv.ParseBool(val)
	if err != nil {
		return false, nil
	}
	return remember, nil
}

// Ping checks both lifetimes.
func (s *Store) Ping(ctx context.Context) error {
	return errors.Join(s.tab.Ping(ctx), s.browser.Ping(ctx))
}

func (s *Store) lifetimes(rememberMe bool) (target, other persistence.KV) {
	if rememberMe {
		return s.browser, s.tab
	}
	return s.tab, s.browser
}

func (s *Store) readPair(ctx context.Context, kv persistence.KV) (string, *domain.Profile, error) {
	cred, ok, err := kv.Get(ctx, KeyCredential)
	if err != nil {
		return "", nil, fmt.Errorf("read credential: %w", err)
	}
	if !ok || cred == "" {
		return "", nil, nil
	}
	profile, err := s.readProfile(ctx, kv)
	if err != nil {
		return "", nil, err
	}
	return cred, profile, nil
}

func (s *Store) readProfile(ctx context.Context, kv persistence.KV) (*domain.Profile, error) {
	raw, ok, err := kv.Get(ctx, KeyProfile)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var profile *domain.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		s.logger.Warn("discarding unparseable stored profile", zap.Error(err))
		return nil, nil
	}
	return profile, nil
}
