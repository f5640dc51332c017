// Package domain defines the core domain models for glovectl.
package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenType is the authorization scheme used when the service omits one.
const DefaultTokenType = "Bearer"

// Credential is the bearer credential issued by the service.
//
// The access token is opaque to storage; only the controller peeks at its
// expiry to decide on proactive refresh.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// IsZero reports whether the credential carries no access token.
func (c Credential) IsZero() bool {
	return c.AccessToken == ""
}

// AuthorizationHeader returns the value for the Authorization header.
// The service always expects the Bearer scheme, whatever token_type says.
func (c Credential) AuthorizationHeader() string {
	return DefaultTokenType + " " + c.AccessToken
}

// ExpiresAt returns the exp claim of the access token when it is a JWT.
// The token is decoded without verification; the result is advisory.
func (c Credential) ExpiresAt() (time.Time, bool) {
	if c.AccessToken == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresWithin reports whether the access token expires within d of now.
// Tokens without a readable expiry never report true.
func (c Credential) ExpiresWithin(now time.Time, d time.Duration) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return !exp.After(now.Add(d))
}
