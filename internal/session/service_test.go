package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-session/internal/domain"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

func TestService_AuthenticatePersistsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.credential(t, "u-1", time.Hour)
	f.api.On("Login", mock.Anything, validLogin).
		Return(&domain.AuthResponse{Token: cred, User: sampleProfile()}, nil).Once()

	result, err := f.service.Authenticate(ctx, validLogin, true)
	require.NoError(t, err)
	assert.Equal(t, cred, result.Credential)

	stored, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, sampleProfile(), stored.Profile)
	assert.True(t, stored.RememberMe)
}

func TestService_AuthenticateValidatesBeforeNetwork(t *testing.T) {
	f := newFixture(t)

	cases := map[string]domain.LoginData{
		"short password": {Email: "a@b.com", Password: "short"},
		"missing email":  {Email: "", Password: "Abcdef12"},
		"bad email":      {Email: "nope", Password: "Abcdef12"},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.Authenticate(context.Background(), data, false)
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
		})
	}
	f.api.AssertNumberOfCalls(t, "Login", 0)
}

func TestService_AuthenticateClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind apperrors.Kind
	}{
		{"bad request", apperrors.FromHTTPStatus(http.StatusBadRequest, "", "bad"), apperrors.KindValidation},
		{"wrong password", apperrors.FromHTTPStatus(http.StatusUnauthorized, "", "nope"), apperrors.KindAuthentication},
		{"forbidden", apperrors.FromHTTPStatus(http.StatusForbidden, "", "no"), apperrors.KindAuthorization},
		{"unverified", apperrors.FromHTTPStatus(http.StatusForbidden, "EMAIL_NOT_VERIFIED", "verify"), apperrors.KindEmailNotVerified},
		{"unknown user", apperrors.FromHTTPStatus(http.StatusNotFound, "", "who"), apperrors.KindUserNotFound},
		{"server error", apperrors.FromHTTPStatus(http.StatusBadGateway, "", "oops"), apperrors.KindUnknown},
		{"offline", apperrors.NewNetworkError(errors.New("dial tcp: refused")), apperrors.KindNetwork},
		{"unclassified", errors.New("boom"), apperrors.KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.api.On("Login", mock.Anything, validLogin).Return(nil, tc.err).Once()

			_, err := f.service.Authenticate(context.Background(), validLogin, true)
			assert.Equal(t, tc.kind, apperrors.KindOf(err))
			assert.Zero(t, f.browser.Len())
		})
	}
}

func TestService_AuthenticateRejectsUnusableCredential(t *testing.T) {
	f := newFixture(t)
	expired := f.credential(t, "u-1", -time.Minute)

	f.api.On("Login", mock.Anything, validLogin).
		Return(&domain.AuthResponse{Token: "garbage", User: sampleProfile()}, nil).Once()
	_, err := f.service.Authenticate(context.Background(), validLogin, false)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))

	f.api.On("Login", mock.Anything, validLogin).
		Return(&domain.AuthResponse{Token: expired, User: sampleProfile()}, nil).Once()
	_, err = f.service.Authenticate(context.Background(), validLogin, false)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))

	assert.Zero(t, f.tab.Len())
}

func TestService_Register(t *testing.T) {
	f := newFixture(t)
	data := validRegistration()
	f.api.On("Register", mock.Anything, data).
		Return(&domain.RegisterResponse{Message: "created", User: sampleProfile(), VerificationToken: "vt"}, nil).Once()

	resp, err := f.service.Register(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "vt", resp.VerificationToken)
	assert.Zero(t, f.tab.Len()+f.browser.Len(), "registration never stores a session")

	bad := validRegistration()
	bad.Password = "weakpass"
	_, err = f.service.Register(context.Background(), bad)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	f.api.AssertNumberOfCalls(t, "Register", 1)
}

func TestService_RegisterWithNationalPhone(t *testing.T) {
	f := newFixture(t)
	data := validRegistration()
	data.Phone = "099 123 4567"
	f.api.On("Register", mock.Anything, data).
		Return(&domain.RegisterResponse{Message: "created", User: sampleProfile(), VerificationToken: "vt"}, nil).Once()

	resp, err := f.service.Register(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "vt", resp.VerificationToken)
}

func TestService_ConfirmEmailMarksCachedProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.credential(t, "u-1", time.Hour)
	require.NoError(t, f.store.Save(ctx, cred, sampleProfile(), false))

	data := domain.EmailConfirmationData{Token: "vt"}
	f.api.On("ConfirmEmail", mock.Anything, cred, data).
		Return(&domain.EmailConfirmationResponse{Message: "confirmed"}, nil).Once()

	resp, err := f.service.ConfirmEmail(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", resp.Message)

	profile, err := f.store.Profile(ctx)
	require.NoError(t, err)
	assert.True(t, profile.IsEmailVerified)

	_, err = f.service.ConfirmEmail(ctx, domain.EmailConfirmationData{Token: " "})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestService_LogoutAlwaysClears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, "cred", sampleProfile(), true))
	f.api.On("Logout", mock.Anything, "cred").Return(apperrors.NewNetworkError(errors.New("offline"))).Once()

	f.service.Logout(ctx)

	stored, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)

	f.service.Logout(ctx)
	f.api.AssertNumberOfCalls(t, "Logout", 1)
}

func TestService_CurrentProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("no credential", func(t *testing.T) {
		f := newFixture(t)
		assert.Nil(t, f.service.CurrentProfile(ctx))
	})

	t.Run("expired credential clears", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, f.credential(t, "u-1", -time.Second), sampleProfile(), true))

		assert.Nil(t, f.service.CurrentProfile(ctx))
		assert.Zero(t, f.browser.Len())
	})

	t.Run("cached profile skips network", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, f.credential(t, "u-1", time.Hour), sampleProfile(), true))

		assert.Equal(t, sampleProfile(), f.service.CurrentProfile(ctx))
		f.api.AssertNumberOfCalls(t, "Profile", 0)
	})

	t.Run("missing profile is fetched and cached", func(t *testing.T) {
		f := newFixture(t)
		cred := f.credential(t, "u-1", time.Hour)
		require.NoError(t, f.store.Save(ctx, cred, sampleProfile(), true))
		require.NoError(t, f.browser.Delete(ctx, KeyProfile))
		f.api.On("Profile", mock.Anything, cred).Return(sampleProfile(), nil).Once()

		assert.Equal(t, sampleProfile(), f.service.CurrentProfile(ctx))
		cached, err := f.store.Profile(ctx)
		require.NoError(t, err)
		assert.NotNil(t, cached)
	})

	t.Run("fetch failure clears", func(t *testing.T) {
		f := newFixture(t)
		cred := f.credential(t, "u-1", time.Hour)
		require.NoError(t, f.store.Save(ctx, cred, sampleProfile(), false))
		require.NoError(t, f.tab.Delete(ctx, KeyProfile))
		f.api.On("Profile", mock.Anything, cred).Return(nil, apperrors.NewNetworkError(errors.New("offline"))).Once()

		assert.Nil(t, f.service.CurrentProfile(ctx))
		assert.Zero(t, f.tab.Len())
	})
}

func TestService_RefreshProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RefreshProfile(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthentication))

	cred := f.credential(t, "u-1", time.Hour)
	require.NoError(t, f.store.Save(ctx, cred, sampleProfile(), true))
	fresh := sampleProfile()
	fresh.Role = domain.RoleStaff
	f.api.On("Profile", mock.Anything, cred).Return(fresh, nil).Once()

	got, err := f.service.RefreshProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, got.Role)

	cached, err := f.store.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, cached.Role)
}

func TestService_SessionInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Nil(t, f.service.SessionInfo(ctx))

	cred := f.credential(t, "u-1", 30*time.Minute)
	require.NoError(t, f.store.Save(ctx, cred, sampleProfile(), false))

	info := f.service.SessionInfo(ctx)
	require.NotNil(t, info)
	assert.Equal(t, cred, info.Credential)
	assert.Equal(t, testNow.Unix(), info.IssuedAt.Unix())
	assert.Equal(t, testNow.Add(30*time.Minute).Unix(), info.ExpiresAt.Unix())

	require.NoError(t, f.store.Save(ctx, "not-a-credential", sampleProfile(), false))
	assert.Nil(t, f.service.SessionInfo(ctx))
}
