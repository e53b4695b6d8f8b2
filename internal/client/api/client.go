// Package api is the typed HTTP client for the auth endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/amp/internal/client/session"
	"github.com/hitoshi/amp/internal/client/transport"
	"github.com/hitoshi/amp/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 1 << 20
	userAgent       = "ampctl/1.0"
)

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client calls the auth endpoints and keeps the session manager in step with
// the responses. Requests go through transport.AuthTransport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Manager
	logger     *slog.Logger
}

// New creates a Client for baseURL. base is the underlying RoundTripper, nil
// for http.DefaultTransport.
func New(baseURL string, sess *session.Manager, base http.RoundTripper, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		logger:  logger,
	}
	c.httpClient = &http.Client{
		Transport: transport.New(base, sess, transport.RefreshFunc(c.refresh)),
		Timeout:   defaultTimeout,
	}
	return c
}

// Register creates an account and stores the resulting session.
func (c *Client) Register(ctx context.Context, email, password string) (*session.Session, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{"email": email, "password": password})
}

// SignIn signs in and stores the resulting session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	return c.authenticate(ctx, "/auth/signin", map[string]string{"email": email, "password": password})
}

// Refresh rotates the held refresh token explicitly. A rejected token clears
// the session.
func (c *Client) Refresh(ctx context.Context) (*session.Session, error) {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		return nil, &Error{StatusCode: http.StatusUnauthorized, Code: model.ErrCodeUnauthorized, Message: "not signed in"}
	}
	s, err := c.refresh(ctx, refreshToken)
	if err != nil {
		if IsUnauthorized(err) {
			_ = c.session.Clear(ctx)
		}
		return nil, err
	}
	if err := c.session.Set(ctx, *s); err != nil {
		return nil, err
	}
	return s, nil
}

// SignOut revokes the held refresh token on the server and forgets the
// session. The local session is cleared even when the call fails.
func (c *Client) SignOut(ctx context.Context) error {
	refreshToken := c.session.RefreshToken()
	var callErr error
	if refreshToken != "" {
		callErr = c.do(ctx, http.MethodPost, "/auth/signout", map[string]string{"refreshToken": refreshToken}, nil)
		if callErr != nil {
			c.logger.Warn("sign-out call failed", slog.String("error", callErr.Error()))
		}
	}
	if err := c.session.Clear(ctx); err != nil {
		return err
	}
	return callErr
}

// Me returns the identity behind the current access token.
func (c *Client) Me(ctx context.Context) (*model.Principal, error) {
	var p model.Principal
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// refresh calls /auth/refresh without touching the session. It backs the
// transport's silent refresh.
func (c *Client) refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	var res model.AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &res); err != nil {
		return nil, err
	}
	s := session.FromAuthResult(&res)
	return &s, nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*session.Session, error) {
	var res model.AuthResult
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	s := session.FromAuthResult(&res)
	if err := c.session.Set(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// do sends body as JSON and decodes a 2xx response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("auth API call failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		c.logger.Debug("auth API returned an error status",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return nil
}
