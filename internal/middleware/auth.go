// Package middleware provides HTTP middleware.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/amp/internal/model"
)

// contextKey is a typed key for request-context values.
type contextKey string

// principalContextKey stores the authenticated principal.
var principalContextKey = contextKey("principal")

// Authenticator resolves an access token to the principal it proves.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.Principal, error)
}

// NewBearerAuthMiddleware requires an "Authorization: Bearer <token>" header,
// resolves it with auth and injects the principal into the request context.
// Missing or rejected tokens get 401.
func NewBearerAuthMiddleware(auth Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			principal, err := auth.Authenticate(r.Context(), tok)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("failed to authenticate request", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}

			annotateUserID(r.Context(), principal.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// bearerToken extracts the token from an Authorization header value.
// The scheme is matched case-insensitively.
func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	tok := strings.TrimSpace(value[len(bearer):])
	if tok == "" {
		return "", false
	}

	return tok, true
}

// PrincipalFromContext returns the principal injected by the bearer middleware.
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || p == nil || p.UserID == "" {
		return nil, fmt.Errorf("principal not found in context")
	}
	return p, nil
}

// UserIDFromContext returns the authenticated user ID.
func UserIDFromContext(ctx context.Context) (string, error) {
	p, err := PrincipalFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return p.UserID, nil
}

// ContextWithPrincipal returns ctx carrying p. Used by the middleware and tests.
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
