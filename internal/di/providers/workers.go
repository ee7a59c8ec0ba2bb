package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/logger"
	"github.com/ilbumi/satin/internal/service"
	"github.com/ilbumi/satin/internal/watcher"
)

// JobSweeperHandle wraps the stale ML job sweeper with shutdown capability.
type JobSweeperHandle struct {
	*service.JobSweeper
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *JobSweeperHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideJobSweeper provides the background sweeper for stale ML jobs.
func ProvideJobSweeper(i do.Injector) (*JobSweeperHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	deps := do.MustInvoke[service.Deps](i)
	log := do.MustInvoke[*logger.Logger](i)

	sweeper := service.NewJobSweeper(storeHandle.Repositories, cfg.MLJob, deps)

	ctx, cancel := context.WithCancel(context.Background())
	go sweeper.Run(ctx)

	log.Info("ML job sweeper started",
		"stale_after", cfg.MLJob.StaleAfter,
		"interval", cfg.MLJob.SweepInterval,
	)

	return &JobSweeperHandle{JobSweeper: sweeper, cancel: cancel}, nil
}

// IngesterHandle wraps the drop directory ingester. Ingester is nil when no
// ingest directory is configured.
type IngesterHandle struct {
	*watcher.Ingester
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *IngesterHandle) Shutdown() error {
	if h.Ingester == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideIngester provides the drop directory ingester.
func ProvideIngester(i do.Injector) (*IngesterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Ingest.Dir == "" {
		log.Info("Ingest directory not configured, watcher disabled")
		return &IngesterHandle{}, nil
	}

	imageService := do.MustInvoke[*service.ImageService](i)

	ingester, err := watcher.NewIngester(imageService, cfg.Ingest, log.Logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ingester.Run(ctx); err != nil {
			log.Error("Ingest watcher stopped", "error", err)
		}
	}()

	return &IngesterHandle{Ingester: ingester, cancel: cancel, done: done}, nil
}
