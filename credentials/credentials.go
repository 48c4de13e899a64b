// Package credentials holds the persisted authentication state of the console
// client: the access/refresh token pair and the cached user profile.
package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserProfile is the cached identity of the logged-in user. It is persisted
// alongside the token pair so a restored session can render without a
// roundtrip, and refreshed from the server at least once per session.
type UserProfile struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
}

// Credential is the unit of persisted authentication state. The access and
// refresh tokens are always written together; a credential missing either
// token is treated as unauthenticated.
type Credential struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *UserProfile `json:"user,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at,omitempty"`
}

// Authenticated reports whether the credential holds a complete token pair.
func (c *Credential) Authenticated() bool {
	return c != nil && c.AccessToken != "" && c.RefreshToken != ""
}

// AccessTokenExpiry recovers the expiry time from the access token's
// registered claims without verifying the signature. Verification is the
// server's job; the client only needs the exp claim to schedule renewal.
func AccessTokenExpiry(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, jwt.ErrTokenInvalidClaims
	}
	return exp.Time, nil
}
