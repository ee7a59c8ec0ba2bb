package dto

import "time"

// TokenRequest is the request body for exchanging the API key for a token.
type TokenRequest struct {
	APIKey string `json:"apiKey" minLength:"1" doc:"Configured API key"`
	Client string `json:"client,omitempty" maxLength:"100" doc:"Free-form caller label recorded in the token"`
}

// TokenInput wraps the token request for huma.
type TokenInput struct {
	Body TokenRequest
}

// TokenResponse is the response for a successful key exchange.
type TokenResponse struct {
	Token     string    `json:"token" doc:"PASETO bearer token"`
	TokenType string    `json:"tokenType" doc:"Always Bearer"`
	ExpiresAt time.Time `json:"expiresAt" doc:"Token expiry"`
	ExpiresIn int       `json:"expiresIn" doc:"Seconds until expiry"`
}

// TokenOutput wraps the token response for huma.
type TokenOutput struct {
	Body TokenResponse
}
