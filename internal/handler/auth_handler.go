// Package handler provides the HTTP handlers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/hitoshi/amp/internal/middleware"
	"github.com/hitoshi/amp/internal/model"
)

const (
	minPasswordLength = 8
	maxRequestBody    = 1 << 20
)

// AuthServiceInterface is what the auth handler needs from the auth service.
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (*model.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*model.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*model.AuthResult, error)
	SignOut(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (*model.Principal, error)
}

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register creates an account.
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}
	if err := validateEmail(req.Email); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}
	if len(req.Password) < minPasswordLength {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError(fmt.Sprintf("password must be at least %d characters", minPasswordLength)))
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// SignIn exchanges credentials for a token pair.
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("email and password are required"))
		return
	}

	result, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Refresh rotates a refresh token.
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}
	if req.RefreshToken == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("refreshToken is required"))
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SignOut invalidates the refresh token if it is the current one.
// It always answers 204, whatever the body.
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeJSONBody(w, r, &req); err == nil && req.RefreshToken != "" {
		if err := h.service.SignOut(r.Context(), req.RefreshToken); err != nil {
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated principal.
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, principal)
}

// decodeJSONBody decodes a single JSON object, rejecting unknown fields and
// bodies over maxRequestBody.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("request body must be a valid JSON object")
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// validateEmail accepts a bare address such as "a@example.com".
func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("email must be a valid address")
	}
	return nil
}
