package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/logger"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the repositories with shutdown capability.
type StoreHandle struct {
	*store.Repositories
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// OpenBackend opens the document store selected by cfg.
func OpenBackend(cfg config.StoreConfig, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return sqlite.Open(cfg.Path, logger)
	case config.DriverBadger, "":
		return store.OpenBadger(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewCache builds the repository cache, or nil when it is disabled.
func NewCache(cfg config.CacheConfig) *store.Cache {
	if !cfg.Enabled {
		return nil
	}
	return store.NewCache(cfg.TTL, cfg.Capacity)
}

// ProvideStore provides the repositories over the configured backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	backend, err := OpenBackend(cfg.Store, log.Logger)
	if err != nil {
		return nil, err
	}

	repos := store.NewRepositories(backend, NewCache(cfg.Cache), log.Logger)

	log.Info("Database initialized",
		"driver", cfg.Store.Driver,
		"path", cfg.Store.Path,
		"cache", cfg.Cache.Enabled,
	)

	return &StoreHandle{Repositories: repos}, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
