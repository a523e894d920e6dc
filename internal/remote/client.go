package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/observability"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

const (
	pathRegister     = "auth/register"
	pathLogin        = "auth/login"
	pathConfirmEmail = "auth/confirm-email"
	pathProfile      = "auth/profile"
	pathLogout       = "auth/logout"

	maxErrorBody = 64 << 10
)

// Client talks to the storefront API's auth endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics records every remote call.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient validates baseURL and builds a client. A zero timeout leaves the
// transport default in place.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api url: %q", trimmed)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Register creates an account. No credential is attached.
func (c *Client) Register(ctx context.Context, data domain.RegisterData) (*domain.RegisterResponse, error) {
	var out domain.RegisterResponse
	if err := c.do(ctx, http.MethodPost, pathRegister, "", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a bearer credential and profile.
func (c *Client) Login(ctx context.Context, data domain.LoginData) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, pathLogin, "", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmEmail redeems a verification token. credential may be empty.
func (c *Client) ConfirmEmail(ctx context.Context, credential string, data domain.EmailConfirmationData) (*domain.EmailConfirmationResponse, error) {
	var out domain.EmailConfirmationResponse
	if err := c.do(ctx, http.MethodPost, pathConfirmEmail, credential, data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the profile the credential belongs to.
func (c *Client) Profile(ctx context.Context, credential string) (*domain.Profile, error) {
	var out domain.ProfileResponse
	if err := c.do(ctx, http.MethodGet, pathProfile, credential, nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, apperrors.NewUnknownError("profile response carried no user", nil)
	}
	return out.User, nil
}

// Logout notifies the API that the credential is no longer in use.
func (c *Client) Logout(ctx context.Context, credential string) error {
	return c.do(ctx, http.MethodPost, pathLogout, credential, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, credential string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewUnknownError("encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return apperrors.NewUnknownError("build request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(observability.RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(path, method, 0)
		c.logger.Warn("remote call failed",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()
	c.metrics.RecordRemoteCall(path, method, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewUnknownError("empty response body", err)
		}
		return apperrors.NewUnknownError("decode response", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body domain.ErrorResponse
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	return apperrors.FromHTTPStatus(resp.StatusCode, body.Error, body.Message)
}
