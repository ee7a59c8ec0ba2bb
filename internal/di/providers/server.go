package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/ilbumi/satin/internal/api"
	"github.com/ilbumi/satin/internal/auth"
	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/logger"
	"github.com/ilbumi/satin/internal/service"
)

// Version is the server version reported by the health endpoint.
// It is set at build time with -ldflags.
var Version = "dev"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideAPIServer provides the HTTP handler with every route registered.
func ProvideAPIServer(i do.Injector) (*api.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	authenticator := do.MustInvoke[*auth.Authenticator](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Projects:    do.MustInvoke[*service.ProjectService](i),
		Images:      do.MustInvoke[*service.ImageService](i),
		Annotations: do.MustInvoke[*service.AnnotationService](i),
		Tags:        do.MustInvoke[*service.TagService](i),
		Tasks:       do.MustInvoke[*service.TaskService](i),
		MLJobs:      do.MustInvoke[*service.MLJobService](i),
		Search:      do.MustInvoke[*service.SearchService](i),
	}

	return api.NewServer(services, api.Options{
		Auth:           authenticator,
		SSE:            sseHandle.Manager,
		Backend:        storeHandle.Backend,
		RateLimiter:    limiter.Limiter,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Version:        Version,
		Logger:         log.Logger,
	}), nil
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	handler := do.MustInvoke[*api.Server](i)
	log := do.MustInvoke[*logger.Logger](i)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "version", Version)

	return &HTTPServerHandle{Server: srv}, nil
}
