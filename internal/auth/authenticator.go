package auth

import (
	"log/slog"
	"strings"

	domainerrors "github.com/ilbumi/satin/internal/errors"
)

// Authenticator exchanges the configured API key for bearer tokens and
// validates Authorization headers. A zero-value API key disables checks.
type Authenticator struct {
	apiKey string
	tokens *TokenService
	logger *slog.Logger
}

// NewAuthenticator creates an authenticator. apiKey may be plaintext or an
// Argon2id hash produced by HashAPIKey.
func NewAuthenticator(apiKey string, tokens *TokenService, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Authenticator{apiKey: apiKey, tokens: tokens, logger: logger}
}

// Enabled reports whether requests must carry a bearer token.
func (a *Authenticator) Enabled() bool {
	return a.apiKey != ""
}

// Exchange issues a token when key matches the configured API key.
func (a *Authenticator) Exchange(key, client string) (*IssuedToken, error) {
	if !a.Enabled() {
		return nil, domainerrors.Forbidden("authentication is disabled")
	}
	if !VerifyAPIKey(a.apiKey, key) {
		a.logger.Warn("rejected api key exchange", "client", client)
		return nil, domainerrors.Unauthorized("invalid api key")
	}
	tok, err := a.tokens.Issue(client)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to issue token")
	}
	return tok, nil
}

// Authenticate validates an Authorization header value.
func (a *Authenticator) Authenticate(header string) (*Claims, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, domainerrors.Unauthorized("missing bearer token")
	}
	claims, err := a.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}
	return claims, nil
}
