package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/service"
)

// ImageExtensions are the file types the ingester hands to the registrar.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// Registrar adds image content to a project.
type Registrar interface {
	RegisterImage(ctx context.Context, req service.RegisterImageRequest, r io.Reader) (*service.RegisterResult, error)
}

// IngestStats counts ingest outcomes since start.
type IngestStats struct {
	Registered int64
	Duplicates int64
	Failed     int64
}

// Ingester registers image files dropped into a directory.
//
// Files already present when Run starts are swept once; after that every
// settled file event is registered. Identical content is deduplicated by the
// registrar, so re-delivering a file is harmless.
type Ingester struct {
	registrar Registrar
	dir       string
	projectID string
	settle    time.Duration
	logger    *slog.Logger

	// fileLocks serializes work per path; a busy path skips the event.
	fileLocks *SyncMap[string, *sync.Mutex]

	registered atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// NewIngester creates an ingester for cfg.Dir that registers into cfg.ProjectID.
func NewIngester(registrar Registrar, cfg config.IngestConfig, logger *slog.Logger) (*Ingester, error) {
	if cfg.Dir == "" {
		return nil, errors.New("ingest directory is not configured")
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("ingest project is not configured")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingester{
		registrar: registrar,
		dir:       cfg.Dir,
		projectID: cfg.ProjectID,
		settle:    cfg.Debounce,
		logger:    logger.With("component", "ingest", "dir", cfg.Dir),
		fileLocks: NewSyncMap[string, *sync.Mutex](),
	}, nil
}

// Run watches the directory until ctx is cancelled.
func (in *Ingester) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("create ingest directory: %w", err)
	}

	w, err := New(in.logger, Options{SettleDelay: in.settle, Extensions: ImageExtensions})
	if err != nil {
		return err
	}
	defer w.Stop() //nolint:errcheck // shutdown path

	if err := w.Watch(in.dir); err != nil {
		return err
	}
	go w.Start(ctx) //nolint:errcheck // returns when ctx is done

	count, err := in.Sweep(ctx)
	if err != nil {
		in.logger.Warn("initial ingest sweep failed", "error", err)
	}
	in.logger.Info("ingest watcher started", "project_id", in.projectID, "swept", count)

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingest watcher stopped")
			return nil
		case event := <-w.Events():
			if err := in.ProcessEvent(ctx, event); err != nil {
				in.logger.Warn("ingest failed", "path", event.Path, "error", err)
			}
		case err := <-w.Errors():
			in.logger.Warn("watcher error", "error", err)
		}
	}
}

// Sweep registers every image file currently in the directory and returns
// how many were newly registered.
func (in *Ingester) Sweep(ctx context.Context) (int, error) {
	opts := Options{Extensions: ImageExtensions}
	opts.setDefaults()

	count := 0
	err := filepath.WalkDir(in.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, _ := filepath.Rel(in.dir, path)
		if path != in.dir && opts.shouldIgnore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !opts.wantsFile(path) {
			return nil
		}

		res, err := in.ingest(ctx, path)
		if err != nil {
			in.logger.Warn("ingest failed", "path", path, "error", err)
			return nil
		}
		if res != nil && !res.Duplicate {
			count++
		}
		return nil
	})
	return count, err
}

// ProcessEvent registers the file of an added event. Removals are logged
// only: registered images keep their own copy of the content.
func (in *Ingester) ProcessEvent(ctx context.Context, event Event) error {
	in.logger.Debug("processing event", "type", event.Type.String(), "path", event.Path)

	switch event.Type {
	case EventAdded:
		_, err := in.ingest(ctx, event.Path)
		return err
	case EventRemoved:
		in.logger.Debug("file left ingest directory", "path", event.Path)
		return nil
	default:
		in.logger.Warn("unknown event type", "type", event.Type, "path", event.Path)
		return nil
	}
}

// Stats returns the outcome counters.
func (in *Ingester) Stats() IngestStats {
	return IngestStats{
		Registered: in.registered.Load(),
		Duplicates: in.duplicates.Load(),
		Failed:     in.failed.Load(),
	}
}

func (in *Ingester) ingest(ctx context.Context, path string) (*service.RegisterResult, error) {
	lock, _ := in.fileLocks.LoadOrStore(path, &sync.Mutex{})
	if !lock.TryLock() {
		in.logger.Debug("file already being ingested, skipping", "path", path)
		return nil, nil
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		in.failed.Add(1)
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rel, err := filepath.Rel(in.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	res, err := in.registrar.RegisterImage(ctx, service.RegisterImageRequest{
		ProjectID: in.projectID,
		Filename:  filepath.Base(path),
		Metadata:  map[string]string{"ingestPath": filepath.ToSlash(rel)},
	}, f)
	if err != nil {
		in.failed.Add(1)
		return nil, err
	}

	if res.Duplicate {
		in.duplicates.Add(1)
		in.logger.Debug("ingested file already registered", "path", path, "image_id", res.Image.ID)
	} else {
		in.registered.Add(1)
		in.logger.Info("ingested image", "path", path, "image_id", res.Image.ID)
	}
	return res, nil
}
