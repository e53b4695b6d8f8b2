package token

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/amp/internal/model"
)

// KeyConfig is the secret and lifetime of one token kind.
type KeyConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Issuer mints and verifies access/refresh pairs with separate keys.
type Issuer struct {
	access  KeyConfig
	refresh KeyConfig
}

// NewIssuer validates both key configs. Access and refresh secrets must differ
// so that one kind can never be accepted as the other.
func NewIssuer(access, refresh KeyConfig) (*Issuer, error) {
	if len(access.Secret) == 0 || len(refresh.Secret) == 0 {
		return nil, errors.New("token: secrets must not be empty")
	}
	if bytes.Equal(access.Secret, refresh.Secret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if access.TTL <= 0 || refresh.TTL <= 0 {
		return nil, fmt.Errorf("token: TTLs must be positive (access=%s refresh=%s)", access.TTL, refresh.TTL)
	}
	return &Issuer{access: access, refresh: refresh}, nil
}

// RefreshTTL is the lifetime of newly issued refresh tokens.
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refresh.TTL
}

// IssuePair signs a new access and refresh token for the user.
func (i *Issuer) IssuePair(userID, email string) (model.TokenPair, error) {
	now := time.Now()
	access, err := signAt(now, userID, email, i.access.Secret, i.access.TTL)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := signAt(now, userID, email, i.refresh.Secret, i.refresh.TTL)
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess verifies an access token.
func (i *Issuer) VerifyAccess(tokenString string) (*Claims, error) {
	return Verify(tokenString, i.access.Secret)
}

// VerifyRefresh verifies a refresh token.
func (i *Issuer) VerifyRefresh(tokenString string) (*Claims, error) {
	return Verify(tokenString, i.refresh.Secret)
}
