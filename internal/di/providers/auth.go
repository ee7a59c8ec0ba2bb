package providers

import (
	"github.com/samber/do/v2"

	"github.com/ilbumi/satin/internal/api"
	"github.com/ilbumi/satin/internal/auth"
	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/logger"
	"github.com/ilbumi/satin/internal/ratelimit"
)

// ProvideTokenService provides the PASETO token service. The key comes from
// the configuration or from <data dir>/token.key, generated on first start.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	keyHex := cfg.Auth.TokenKey
	if keyHex == "" {
		var err error
		if keyHex, err = auth.LoadOrGenerateKey(cfg.App.DataDir); err != nil {
			return nil, err
		}
	}

	log.Info("Authentication key loaded",
		"enabled", cfg.Auth.Enabled(),
		"token_duration", cfg.Auth.TokenDuration,
	)

	return auth.NewTokenService(keyHex, cfg.Auth.TokenDuration)
}

// ProvideAuthenticator provides the API key authenticator.
func ProvideAuthenticator(i do.Injector) (*auth.Authenticator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Auth.Enabled() {
		log.Warn("API authentication disabled: no API key configured")
	}
	return auth.NewAuthenticator(cfg.Auth.APIKey, tokens, log.Logger), nil
}

// RateLimiterHandle wraps the request limiter. Limiter is nil when rate
// limiting is disabled.
type RateLimiterHandle struct {
	Limiter *api.RateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvideRateLimiter provides the per-client request limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if !cfg.RateLimit.Enabled {
		return &RateLimiterHandle{}, nil
	}
	return &RateLimiterHandle{
		Limiter: ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}, nil
}
