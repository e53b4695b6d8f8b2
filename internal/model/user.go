package model

import "time"

// User is a registered account together with its credential state.
type User struct {
	ID           string
	Email        string
	PasswordHash string

	// RefreshTokenHash is nil when no refresh token is outstanding.
	RefreshTokenHash      *string
	RefreshTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser is the subset of User that is safe to return to clients.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Public strips credential fields.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email}
}

// TokenPair is an access token together with the refresh token that can renew it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by register, sign-in and refresh.
type AuthResult struct {
	User   PublicUser `json:"user"`
	Tokens TokenPair  `json:"tokens"`
}

// Principal is the identity proven by a valid access token.
type Principal struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}
