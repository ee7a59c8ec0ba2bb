package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/search"
	"github.com/ilbumi/satin/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	maxSearchLimit = 100
	// maxAnnotationDocs bounds the index lookup of one image's annotations.
	maxAnnotationDocs = 10_000
)

// SearchService bridges the search index with the store. It implements
// SearchIndexer for the other services.
type SearchService struct {
	index  *search.SearchIndex
	repos  *store.Repositories
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, repos *store.Repositories, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SearchService{
		index:  index,
		repos:  repos,
		logger: logger,
	}
}

var _ SearchIndexer = (*SearchService)(nil)

// Search runs a query against the index.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if params.Limit > maxSearchLimit {
		params.Limit = maxSearchLimit
	}
	if params.Offset < 0 {
		return nil, domainerrors.Validation("offset must not be negative")
	}
	if params.MinConfidence != nil && params.MaxConfidence != nil && *params.MinConfidence > *params.MaxConfidence {
		return nil, domainerrors.Validation("minimum confidence exceeds maximum")
	}
	for _, t := range params.Types {
		switch t {
		case search.DocTypeProject, search.DocTypeImage, search.DocTypeTag, search.DocTypeAnnotation:
		default:
			return nil, domainerrors.ValidationWithDetails("validation failed",
				map[string]string{"types": fmt.Sprintf("unknown type %q", t)})
		}
	}
	params.Query = strings.TrimSpace(params.Query)
	params.TagIDs = normalizeIDs(params.TagIDs)
	return s.index.Search(ctx, params)
}

// IndexProject indexes a project.
func (s *SearchService) IndexProject(_ context.Context, p *domain.Project) error {
	return s.index.IndexDocument(search.ProjectToSearchDocument(p))
}

// DeleteProject removes a project from the index.
func (s *SearchService) DeleteProject(_ context.Context, projectID string) error {
	return s.index.DeleteDocument(projectID)
}

// IndexImage indexes an image.
func (s *SearchService) IndexImage(_ context.Context, img *domain.Image) error {
	return s.index.IndexDocument(search.ImageToSearchDocument(img))
}

// DeleteImage removes an image from the index.
func (s *SearchService) DeleteImage(_ context.Context, imageID string) error {
	return s.index.DeleteDocument(imageID)
}

// IndexTags indexes tags in one batch.
func (s *SearchService) IndexTags(_ context.Context, tags []*domain.Tag) error {
	docs := make([]*search.SearchDocument, len(tags))
	for i, t := range tags {
		docs[i] = search.TagToSearchDocument(t)
	}
	return s.index.IndexDocuments(docs)
}

// DeleteTags removes tags from the index.
func (s *SearchService) DeleteTags(_ context.Context, tagIDs []string) error {
	return s.index.DeleteDocuments(tagIDs)
}

// SyncAnnotations makes the index hold exactly the active annotations of
// an image: current lineage states are indexed, superseded versions and
// deleted lineages are removed.
func (s *SearchService) SyncAnnotations(ctx context.Context, imageID string) error {
	hexID, ok := id.Normalize(imageID)
	if !ok {
		return nil
	}

	active, err := s.repos.Annotations.ActiveForImage(ctx, hexID)
	if err != nil {
		return fmt.Errorf("load active annotations: %w", err)
	}
	keep := make(map[string]bool, len(active))
	docs := make([]*search.SearchDocument, len(active))
	for i, a := range active {
		keep[a.ID] = true
		docs[i] = search.AnnotationToSearchDocument(a)
	}

	indexed, err := s.index.Search(ctx, search.SearchParams{
		Types:   []search.DocType{search.DocTypeAnnotation},
		ImageID: hexID,
		Limit:   maxAnnotationDocs,
	})
	if err != nil {
		return fmt.Errorf("find indexed annotations: %w", err)
	}
	var stale []string
	for _, hit := range indexed.Hits {
		if !keep[hit.ID] {
			stale = append(stale, hit.ID)
		}
	}

	if err := s.index.DeleteDocuments(stale); err != nil {
		return fmt.Errorf("delete stale annotations: %w", err)
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		return fmt.Errorf("index annotations: %w", err)
	}

	s.logger.Debug("synced annotation index", "image_id", hexID, "active", len(docs), "removed", len(stale))
	return nil
}

// DocumentCount returns the number of indexed documents.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// ReindexAll drops the index and rebuilds it from the store.
// This is a heavy operation - use sparingly.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	s.logger.Info("starting full reindex")

	if err := s.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return indexCollection(gctx, s, "projects", s.repos.Projects.Collection, search.ProjectToSearchDocument)
	})
	g.Go(func() error {
		return indexCollection(gctx, s, "images", s.repos.Images.Collection, search.ImageToSearchDocument)
	})
	g.Go(func() error {
		return indexCollection(gctx, s, "tags", s.repos.Tags.Collection, search.TagToSearchDocument)
	})
	g.Go(func() error {
		return s.reindexAnnotations(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	count, _ := s.index.DocumentCount()
	s.logger.Info("full reindex completed", "documents", count)
	return nil
}

func (s *SearchService) reindexAnnotations(ctx context.Context) error {
	imageIDs := map[string]bool{}
	for a, err := range s.repos.Annotations.All(ctx) {
		if err != nil {
			return fmt.Errorf("list annotations: %w", err)
		}
		imageIDs[a.ImageID] = true
	}

	total := 0
	for imageID := range imageIDs {
		active, err := s.repos.Annotations.ActiveForImage(ctx, imageID)
		if err != nil {
			return fmt.Errorf("load active annotations of %s: %w", imageID, err)
		}
		docs := make([]*search.SearchDocument, len(active))
		for i, a := range active {
			docs[i] = search.AnnotationToSearchDocument(a)
		}
		if err := s.index.IndexDocuments(docs); err != nil {
			return fmt.Errorf("index annotations: %w", err)
		}
		total += len(docs)
	}
	s.logger.Info("indexed annotations", "count", total, "images", len(imageIDs))
	return nil
}

func indexCollection[T any](ctx context.Context, s *SearchService, name string, c *store.Collection[T], toDoc func(*T) *search.SearchDocument) error {
	var docs []*search.SearchDocument
	for doc, err := range c.All(ctx) {
		if err != nil {
			return fmt.Errorf("list %s: %w", name, err)
		}
		docs = append(docs, toDoc(doc))
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		return fmt.Errorf("index %s: %w", name, err)
	}
	s.logger.Info("indexed "+name, "count", len(docs))
	return nil
}
