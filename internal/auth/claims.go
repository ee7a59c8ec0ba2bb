package auth

import (
	"time"
)

// Claims represents the claims stored in a PASETO access token.
// v4.local tokens are encrypted, so clients cannot read them.
type Claims struct {
	Client string `json:"client,omitempty"` // free-form caller label from the token request

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// IssuedToken is returned by a successful key exchange.
type IssuedToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}
