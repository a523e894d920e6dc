package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/persistence"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Register(ctx context.Context, data domain.RegisterData) (*domain.RegisterResponse, error) {
	args := m.Called(ctx, data)
	resp, _ := args.Get(0).(*domain.RegisterResponse)
	return resp, args.Error(1)
}

func (m *mockAPI) Login(ctx context.Context, data domain.LoginData) (*domain.AuthResponse, error) {
	args := m.Called(ctx, data)
	resp, _ := args.Get(0).(*domain.AuthResponse)
	return resp, args.Error(1)
}

func (m *mockAPI) ConfirmEmail(ctx context.Context, credential string, data domain.EmailConfirmationData) (*domain.EmailConfirmationResponse, error) {
	args := m.Called(ctx, credential, data)
	resp, _ := args.Get(0).(*domain.EmailConfirmationResponse)
	return resp, args.Error(1)
}

func (m *mockAPI) Profile(ctx context.Context, credential string) (*domain.Profile, error) {
	args := m.Called(ctx, credential)
	profile, _ := args.Get(0).(*domain.Profile)
	return profile, args.Error(1)
}

func (m *mockAPI) Logout(ctx context.Context, credential string) error {
	return m.Called(ctx, credential).Error(0)
}

type fixture struct {
	api     *mockAPI
	tab     *persistence.MemoryKV
	browser *persistence.MemoryKV
	store   *Store
	service *Service
	session *Context
	issuer  *auth.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		api:     &mockAPI{},
		tab:     persistence.NewMemoryKV(),
		browser: persistence.NewMemoryKV(),
		issuer:  auth.NewTokenIssuer("test-secret", 60).WithClock(func() time.Time { return testNow }),
	}
	f.store = NewStore(f.tab, f.browser, zap.NewNop())
	f.service = NewService(f.api, f.store, zap.NewNop(), WithClock(func() time.Time { return testNow }))
	f.session = NewContext(f.service, nil, zap.NewNop())

	t.Cleanup(func() { f.api.AssertExpectations(t) })
	return f
}

func (f *fixture) credential(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	cred, _, err := f.issuer.IssueWithExpiry(subject, testNow.Add(ttl))
	require.NoError(t, err)
	return cred
}

func sampleProfile() *domain.Profile {
	lastLogin := testNow.Add(-time.Hour)
	return &domain.Profile{
		ID:              "u-1",
		FirstName:       "Ana",
		LastName:        "Mora",
		Email:           "a@b.com",
		Phone:           "0991234567",
		Role:            domain.RoleCustomer,
		IsEmailVerified: false,
		IsActive:        true,
		LastLogin:       &lastLogin,
		CreatedAt:       testNow.Add(-48 * time.Hour),
		UpdatedAt:       testNow.Add(-24 * time.Hour),
	}
}

var validLogin = domain.LoginData{Email: "a@b.com", Password: "Abcdef12"}

func validRegistration() domain.RegisterData {
	return domain.RegisterData{FirstName: "Ana", LastName: "Mora", Email: "a@b.com", Password: "Abcdef12"}
}
