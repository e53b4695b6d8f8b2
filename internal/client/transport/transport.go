// Package transport provides the http.RoundTripper that attaches access tokens
// and silently refreshes them once when the server answers 401.
package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/amp/internal/client/session"
)

// RetryHeader marks a request that has already been retried after a refresh.
const RetryHeader = "X-Auth-Retried"

// authEndpoints never carry a bearer token and are never retried.
var authEndpoints = []string{"/auth/signin", "/auth/register", "/auth/refresh"}

// SessionStore is the part of session.Manager the transport needs.
type SessionStore interface {
	AccessToken() string
	RefreshToken() string
	Set(ctx context.Context, s session.Session) error
	Clear(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new session.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*session.Session, error)
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context, refreshToken string) (*session.Session, error)

// Refresh calls f.
func (f RefreshFunc) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	return f(ctx, refreshToken)
}

// AuthTransport is safe for concurrent use. Concurrent 401s presenting the same
// refresh token share one refresh call.
type AuthTransport struct {
	base      http.RoundTripper
	session   SessionStore
	refresher Refresher
	group     singleflight.Group
}

// New wraps base (http.DefaultTransport when nil).
func New(base http.RoundTripper, sess SessionStore, refresher Refresher) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{
		base:      base,
		session:   sess,
		refresher: refresher,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	authEndpoint := isAuthEndpoint(req.URL.Path)

	out := req.Clone(req.Context())
	sent := ""
	if !authEndpoint {
		if sent = t.session.AccessToken(); sent != "" {
			out.Header.Set("Authorization", "Bearer "+sent)
		}
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if authEndpoint || req.Header.Get(RetryHeader) != "" {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// body already consumed and cannot be replayed
		return resp, nil
	}

	accessToken, ok := t.freshAccessToken(req.Context(), sent)
	if !ok {
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+accessToken)
	retry.Header.Set(RetryHeader, "1")

	drainAndClose(resp.Body)
	return t.base.RoundTrip(retry)
}

// freshAccessToken returns an access token newer than sent, refreshing if no
// other request already did. On failure the session is cleared.
func (t *AuthTransport) freshAccessToken(ctx context.Context, sent string) (string, bool) {
	if cur := t.session.AccessToken(); cur != "" && cur != sent {
		return cur, true
	}

	refreshToken := t.session.RefreshToken()
	if refreshToken == "" {
		t.clear(ctx)
		return "", false
	}

	v, err, _ := t.group.Do(refreshToken, func() (interface{}, error) {
		// The shared call outlives any single caller's cancellation.
		shared := context.WithoutCancel(ctx)
		s, err := t.refresher.Refresh(shared, refreshToken)
		if err != nil {
			return nil, err
		}
		if err := t.session.Set(shared, *s); err != nil {
			slog.Warn("failed to persist refreshed session", slog.String("error", err.Error()))
		}
		return s.Tokens.AccessToken, nil
	})
	if err != nil {
		slog.Info("silent refresh failed, clearing session", slog.String("error", err.Error()))
		t.clear(ctx)
		return "", false
	}
	return v.(string), true
}

func (t *AuthTransport) clear(ctx context.Context) {
	if err := t.session.Clear(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("failed to clear session", slog.String("error", err.Error()))
	}
}

func isAuthEndpoint(path string) bool {
	for _, ep := range authEndpoints {
		if strings.HasSuffix(path, ep) {
			return true
		}
	}
	return false
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
