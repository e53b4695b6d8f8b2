// Package auth implements registration, sign-in, refresh-token rotation and sign-out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/amp/internal/model"
	"github.com/hitoshi/amp/internal/repository"
	"github.com/hitoshi/amp/internal/security"
	"github.com/hitoshi/amp/internal/token"
)

// Operation names reported to the metrics recorder.
const (
	OpRegister     = "register"
	OpSignIn       = "signin"
	OpRefresh      = "refresh"
	OpSignOut      = "signout"
	OpAuthenticate = "authenticate"
)

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// TokenIssuer mints and verifies token pairs.
type TokenIssuer interface {
	IssuePair(userID, email string) (model.TokenPair, error)
	VerifyAccess(tokenString string) (*token.Claims, error)
	VerifyRefresh(tokenString string) (*token.Claims, error)
	RefreshTTL() time.Duration
}

// MetricsRecorder receives the outcome of every auth operation.
type MetricsRecorder interface {
	RecordAuthOperation(operation, outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthOperation(string, string, time.Duration) {}

// Service holds the auth business logic.
type Service struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	metrics  MetricsRecorder
	now      func() time.Time
}

// NewService creates a Service. metrics may be nil.
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	metrics MetricsRecorder,
) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Register creates an account and signs it in.
// A taken email yields a CONFLICT APIError.
func (s *Service) Register(ctx context.Context, email, password string) (result *model.AuthResult, err error) {
	defer s.observe(OpRegister, s.now(), &err)

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateWithPassword(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))

	return s.issueTokens(ctx, user)
}

// SignIn checks credentials and issues a fresh pair, replacing any
// previously stored refresh token.
func (s *Service) SignIn(ctx context.Context, email, password string) (result *model.AuthResult, err error) {
	defer s.observe(OpSignIn, s.now(), &err)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Info("sign-in rejected", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))

	return s.issueTokens(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// match the stored hash, and after success it no longer does.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (result *model.AuthResult, err error) {
	defer s.observe(OpRefresh, s.now(), &err)

	user, err := s.matchRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewInvalidRefreshTokenError()
	}

	slog.Info("refresh token rotated", slog.String("user_id", user.ID))

	return s.issueTokens(ctx, user)
}

// SignOut clears the stored refresh token if refreshToken is the current one.
// Unverifiable or stale tokens are ignored. Only store failures are returned.
func (s *Service) SignOut(ctx context.Context, refreshToken string) (err error) {
	defer s.observe(OpSignOut, s.now(), &err)

	user, err := s.matchRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	if err := s.userRepo.ClearRefreshTokenHash(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	slog.Info("user signed out", slog.String("user_id", user.ID))
	return nil
}

// Authenticate verifies an access token and confirms its subject still exists.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (principal *model.Principal, err error) {
	defer s.observe(OpAuthenticate, s.now(), &err)

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID())
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return &model.Principal{UserID: user.ID, Email: user.Email}, nil
}

// matchRefreshToken returns the owner of refreshToken when the token verifies
// and equals the stored one. A nil user with a nil error means no match.
func (s *Service) matchRefreshToken(ctx context.Context, refreshToken string) (*model.User, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID())
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.RefreshTokenHash == nil {
		return nil, nil
	}
	if !security.MatchTokenDigest(*user.RefreshTokenHash, refreshToken) {
		return nil, nil
	}
	return user, nil
}

// issueTokens mints a pair and stores the digest of its refresh token.
func (s *Service) issueTokens(ctx context.Context, user *model.User) (*model.AuthResult, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.tokens.RefreshTTL()).UTC()
	if err := s.userRepo.UpdateRefreshTokenHash(ctx, user.ID, security.DigestToken(pair.RefreshToken), expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &model.AuthResult{User: user.Public(), Tokens: pair}, nil
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.metrics.RecordAuthOperation(op, outcome(*errp), s.now().Sub(start))
}

// outcome classifies err into a low-cardinality metrics label.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return strings.ToLower(apiErr.Code)
	}
	return "error"
}
