package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/events"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(c *Context) *recorder {
	r := &recorder{}
	c.Events().SubscribeAll(func(_ context.Context, ev events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
		return nil
	})
	return r
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (f *fixture) login(t *testing.T, remember bool) string {
	t.Helper()
	cred := f.credential(t, "u-1", time.Hour)
	f.api.On("Login", mock.Anything, validLogin).
		Return(&domain.AuthResponse{Token: cred, User: sampleProfile()}, nil).Once()

	_, err := f.session.Authenticate(context.Background(), validLogin, LoginOptions{RememberMe: &remember})
	require.NoError(t, err)
	return cred
}

func TestContext_StartsIdle(t *testing.T) {
	f := newFixture(t)
	snap := f.session.Snapshot()
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.False(t, snap.IsAuthenticated)
	assert.True(t, snap.IsUnauthenticated)
}

func TestContext_AuthenticateSuccess(t *testing.T) {
	f := newFixture(t)
	rec := record(f.session)

	cred := f.login(t, true)

	snap := f.session.Snapshot()
	assert.Equal(t, domain.StatusAuthenticated, snap.Status)
	assert.True(t, snap.IsAuthenticated)
	assert.True(t, snap.RememberMe)
	assert.Equal(t, cred, snap.Credential)
	assert.Equal(t, domain.RoleCustomer, snap.Role)
	assert.False(t, snap.IsStaff)
	assert.False(t, snap.IsAnyLoading)

	stored, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.Profile, stored.Profile)
	assert.Equal(t, []events.Type{events.TypeLogin}, rec.types())
}

func TestContext_AuthenticateShortPasswordNeverHitsNetwork(t *testing.T) {
	f := newFixture(t)
	rec := record(f.session)

	_, err := f.session.Authenticate(context.Background(), domain.LoginData{Email: "a@b.com", Password: "short"}, LoginOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	f.api.AssertNumberOfCalls(t, "Login", 0)

	snap := f.session.Snapshot()
	assert.Equal(t, domain.StatusError, snap.Status)
	require.NotNil(t, snap.Err)
	assert.Equal(t, apperrors.KindValidation, snap.Err.Kind)
	assert.Nil(t, snap.Profile)
	assert.Equal(t, []events.Type{events.TypeError}, rec.types())
}

func TestContext_AuthenticateFailureResetsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t, false)

	f.api.On("Login", mock.Anything, validLogin).
		Return(nil, apperrors.NewNetworkError(errors.New("offline"))).Once()
	_, err := f.session.Authenticate(context.Background(), validLogin, LoginOptions{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNetwork))

	snap := f.session.Snapshot()
	assert.Nil(t, snap.Profile)
	assert.Empty(t, snap.Credential)
	assert.False(t, snap.IsAuthenticated)

	f.session.ClearError()
	assert.Equal(t, domain.StatusUnauthenticated, f.session.Snapshot().Status)
}

func TestContext_InitializeWithoutCredential(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Initialize(context.Background()))
	assert.Equal(t, domain.StatusUnauthenticated, f.session.Snapshot().Status)
}

func TestContext_InitializeRestoresStoredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.credential(t, "u-1", time.Hour)
	require.NoError(t, f.store.Save(ctx, cred, sampleProfile(), true))

	require.NoError(t, f.session.Initialize(ctx))

	snap := f.session.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.True(t, snap.RememberMe)
	assert.Equal(t, cred, snap.Credential)
	f.api.AssertNumberOfCalls(t, "Profile", 0)
}

func TestContext_InitializeExpiredCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, f.credential(t, "u-1", -time.Minute), sampleProfile(), true))
	rec := record(f.session)

	require.NoError(t, f.session.Initialize(ctx))

	assert.Equal(t, domain.StatusUnauthenticated, f.session.Snapshot().Status)
	stored, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Equal(t, []events.Type{events.TypeLogout}, rec.types())
}

func TestContext_InitializeKeepsCachedSessionWhenOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.login(t, true)

	require.NoError(t, f.browser.Delete(ctx, KeyProfile))
	f.api.On("Profile", mock.Anything, cred).
		Return(nil, apperrors.NewNetworkError(errors.New("dial tcp: connection refused"))).Once()

	require.NoError(t, f.session.Initialize(ctx))

	snap := f.session.Snapshot()
	assert.Equal(t, domain.StatusAuthenticated, snap.Status)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, sampleProfile(), snap.Profile)
	assert.Equal(t, cred, snap.Credential)
	f.api.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
}

func TestContext_InitializeOfflineWithoutCachedProfileLogsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.credential(t, "u-1", time.Hour)
	require.NoError(t, f.tab.Set(ctx, KeyCredential, cred))

	f.api.On("Profile", mock.Anything, cred).
		Return(nil, apperrors.NewNetworkError(errors.New("offline"))).Once()
	f.api.On("Logout", mock.Anything, cred).
		Return(apperrors.NewNetworkError(errors.New("offline"))).Once()

	err := f.session.Initialize(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNetwork))
	assert.Equal(t, domain.StatusUnauthenticated, f.session.Snapshot().Status)
	assert.Zero(t, f.tab.Len())
}

func TestContext_InitializeRejectedCredentialLogsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.credential(t, "u-1", time.Hour)
	require.NoError(t, f.tab.Set(ctx, KeyCredential, cred))

	f.api.On("Profile", mock.Anything, cred).
		Return(nil, apperrors.NewAuthError(apperrors.KindAuthentication, "revoked")).Once()
	f.api.On("Logout", mock.Anything, cred).Return(nil).Once()

	err := f.session.Initialize(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthentication))
	assert.Equal(t, domain.StatusUnauthenticated, f.session.Snapshot().Status)
}

func TestContext_RegisterWithoutAutoLoginLeavesSession(t *testing.T) {
	f := newFixture(t)
	cred := f.login(t, false)
	before := f.session.Snapshot()

	data := validRegistration()
	data.Email = "other@b.com"
	f.api.On("Register", mock.Anything, data).
		Return(&domain.RegisterResponse{Message: "created", User: &domain.Profile{ID: "u-2"}}, nil).Once()

	_, err := f.session.Register(context.Background(), data, RegisterOptions{})
	require.NoError(t, err)

	after := f.session.Snapshot()
	assert.Equal(t, before.Profile, after.Profile)
	assert.Equal(t, cred, after.Credential)
	assert.Equal(t, domain.StatusAuthenticated, after.Status)
}

func TestContext_RegisterWithAutoLogin(t *testing.T) {
	f := newFixture(t)
	rec := record(f.session)
	f.session.SetRememberMe(true)

	data := validRegistration()
	cred := f.credential(t, "u-1", time.Hour)
	f.api.On("Register", mock.Anything, data).
		Return(&domain.RegisterResponse{Message: "created", User: sampleProfile(), VerificationToken: "vt"}, nil).Once()
	f.api.On("Login", mock.Anything, domain.LoginData{Email: data.Email, Password: data.Password}).
		Return(&domain.AuthResponse{Token: cred, User: sampleProfile()}, nil).Once()

	_, err := f.session.Register(context.Background(), data, RegisterOptions{AutoLogin: true})
	require.NoError(t, err)

	assert.True(t, f.session.Snapshot().IsAuthenticated)
	stored, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.RememberMe)
	assert.Equal(t, []events.Type{events.TypeLogin, events.TypeRegistered}, rec.types())
}

func TestContext_RegisterFailureFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.login(t, false)
	rec := record(f.session)

	data := validRegistration()
	f.api.On("Register", mock.Anything, data).
		Return(nil, apperrors.FromHTTPStatus(409, "USER_EXISTS", "email already registered")).Once()

	_, err := f.session.Register(context.Background(), data, RegisterOptions{})
	require.Error(t, err)

	snap := f.session.Snapshot()
	assert.Nil(t, snap.Profile)
	assert.Empty(t, snap.Credential)
	assert.Equal(t, domain.StatusError, snap.Status)
	assert.Equal(t, []events.Type{events.TypeError}, rec.types())
}

func TestContext_ConfirmEmail(t *testing.T) {
	f := newFixture(t)
	cred := f.login(t, false)
	rec := record(f.session)

	data := domain.EmailConfirmationData{Token: "vt"}
	f.api.On("ConfirmEmail", mock.Anything, cred, data).
		Return(&domain.EmailConfirmationResponse{Message: "confirmed"}, nil).Once()

	_, err := f.session.ConfirmEmail(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, f.session.Snapshot().IsEmailVerified)

	f.api.On("ConfirmEmail", mock.Anything, cred, data).
		Return(nil, apperrors.FromHTTPStatus(400, "", "token already used")).Once()
	_, err = f.session.ConfirmEmail(context.Background(), data)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	snap := f.session.Snapshot()
	assert.Equal(t, cred, snap.Credential, "confirmation failures keep the session")
	assert.Equal(t, domain.StatusError, snap.Status)
	assert.Equal(t, []events.Type{events.TypeEmailConfirmed, events.TypeError}, rec.types())

	f.session.ClearError()
	assert.Equal(t, domain.StatusAuthenticated, f.session.Snapshot().Status)
}

func TestContext_LogoutIgnoresRemoteFailure(t *testing.T) {
	f := newFixture(t)
	cred := f.login(t, true)
	f.api.On("Logout", mock.Anything, cred).Return(errors.New("500")).Once()

	f.session.Logout(context.Background())

	snap := f.session.Snapshot()
	assert.Equal(t, domain.StatusUnauthenticated, snap.Status)
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.RememberMe)
	assert.Zero(t, f.browser.Len())
}

func TestContext_RefreshProfile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.RefreshProfile(context.Background()))
	f.api.AssertNumberOfCalls(t, "Profile", 0)

	cred := f.login(t, false)
	promoted := sampleProfile()
	promoted.Role = domain.RoleAdmin
	f.api.On("Profile", mock.Anything, cred).Return(promoted, nil).Once()

	require.NoError(t, f.session.RefreshProfile(context.Background()))
	snap := f.session.Snapshot()
	assert.True(t, snap.IsAdmin)
	assert.True(t, snap.IsStaff)
	assert.True(t, snap.HasAnyRole(domain.RoleStaff, domain.RoleAdmin))

	f.api.On("Profile", mock.Anything, cred).Return(nil, apperrors.FromHTTPStatus(401, "", "expired")).Once()
	f.api.On("Logout", mock.Anything, cred).Return(nil).Once()
	assert.Error(t, f.session.RefreshProfile(context.Background()))
	assert.Equal(t, domain.StatusUnauthenticated, f.session.Snapshot().Status)
}

func TestContext_SessionExpiringSoon(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      bool
	}{
		{300 * time.Second, true},
		{time.Second, true},
		{301 * time.Second, false},
		{0, false},
		{-10 * time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.remaining.String(), func(t *testing.T) {
			f := newFixture(t)
			cred := f.credential(t, "u-1", tc.remaining)
			f.session.update(func(s *state) {
				s.profile = sampleProfile()
				s.credential = cred
				s.status = domain.StatusAuthenticated
			})

			assert.Equal(t, tc.want, f.session.Snapshot().IsSessionExpiringSoon)
		})
	}

	t.Run("no session", func(t *testing.T) {
		f := newFixture(t)
		assert.False(t, f.session.Snapshot().IsSessionExpiringSoon)
	})
}

func TestContext_ConcurrentInitialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, f.credential(t, "u-1", time.Hour), sampleProfile(), false))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.session.Initialize(ctx))
		}()
	}
	wg.Wait()

	assert.True(t, f.session.Snapshot().IsAuthenticated)
}

func TestContext_Principal(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.session.Principal().Authenticated)

	f.login(t, false)
	p := f.session.Principal()
	assert.True(t, p.Authenticated)
	assert.Equal(t, "u-1", p.SubjectID)
	assert.Equal(t, domain.RoleCustomer, p.Role)
	assert.False(t, p.EmailVerified)
}
