// Package service holds the business operations behind the API: input
// validation and sanitization, repository orchestration, search indexing and
// event broadcasting.
package service

import (
	"context"
	"log/slog"

	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/validation"
)

// EventEmitter broadcasts change events to connected clients.
type EventEmitter interface {
	Emit(event sse.Event)
}

// NoopEmitter is an EventEmitter that drops every event.
type NoopEmitter struct{}

// Emit implements EventEmitter.
func (NoopEmitter) Emit(sse.Event) {}

// SearchIndexer keeps the search index in sync with store changes.
// Index failures are logged by callers, never returned to API clients.
type SearchIndexer interface {
	IndexProject(ctx context.Context, p *domain.Project) error
	DeleteProject(ctx context.Context, projectID string) error
	IndexImage(ctx context.Context, img *domain.Image) error
	DeleteImage(ctx context.Context, imageID string) error
	IndexTags(ctx context.Context, tags []*domain.Tag) error
	DeleteTags(ctx context.Context, tagIDs []string) error
	SyncAnnotations(ctx context.Context, imageID string) error
}

// NoopSearchIndexer is a SearchIndexer that does nothing.
type NoopSearchIndexer struct{}

func (NoopSearchIndexer) IndexProject(context.Context, *domain.Project) error { return nil }
func (NoopSearchIndexer) DeleteProject(context.Context, string) error         { return nil }
func (NoopSearchIndexer) IndexImage(context.Context, *domain.Image) error     { return nil }
func (NoopSearchIndexer) DeleteImage(context.Context, string) error           { return nil }
func (NoopSearchIndexer) IndexTags(context.Context, []*domain.Tag) error      { return nil }
func (NoopSearchIndexer) DeleteTags(context.Context, []string) error          { return nil }
func (NoopSearchIndexer) SyncAnnotations(context.Context, string) error       { return nil }

// Deps carries the collaborators shared by every service.
// Nil fields fall back to no-op implementations.
type Deps struct {
	Validator *validation.Validator
	Events    EventEmitter
	Indexer   SearchIndexer
	Logger    *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if d.Events == nil {
		d.Events = NoopEmitter{}
	}
	if d.Indexer == nil {
		d.Indexer = NoopSearchIndexer{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// notFound converts a nil repository result into a NOT_FOUND error.
func notFound[T any](v *T, err error, format string, args ...any) (*T, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domainerrors.NotFoundf(format, args...)
	}
	return v, nil
}

// logIndexError reports a failed index update without failing the request.
func logIndexError(logger *slog.Logger, err error, op, id string) {
	if err != nil {
		logger.Warn("search index update failed", "op", op, "id", id, "error", err)
	}
}

// pageParams clamps the limit and rejects malformed cursors.
func pageParams(limit int, cursor string) (store.PaginationParams, error) {
	params := store.PaginationParams{Limit: limit, Cursor: cursor}
	params.Validate()
	if _, err := params.Offset(); err != nil {
		return params, domainerrors.Validation("invalid pagination cursor").WithCause(err)
	}
	return params, nil
}
