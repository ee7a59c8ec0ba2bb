package service

import (
	"context"
	"errors"
	"log/slog"

	tagcolor "github.com/ilbumi/satin/internal/color"
	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/sanitize"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/validation"
)

const (
	maxTagName        = 100
	maxTagDescription = 1000
	defaultTagSearch  = 20
)

// TagService orchestrates tag hierarchy operations.
type TagService struct {
	tags      *store.TagRepository
	validator *validation.Validator
	events    EventEmitter
	indexer   SearchIndexer
	logger    *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(repos *store.Repositories, deps Deps) *TagService {
	deps = deps.withDefaults()
	return &TagService{
		tags:      repos.Tags,
		validator: deps.Validator,
		events:    deps.Events,
		indexer:   deps.Indexer,
		logger:    deps.Logger,
	}
}

// TagNode is a tag with its children nested, as returned by GetTree.
type TagNode struct {
	*domain.Tag
	Children []*TagNode `json:"children"`
}

// CreateTagRequest contains fields for creating a tag.
type CreateTagRequest struct {
	Name        string `json:"name" validate:"required,tagname,max=100"`
	Description string `json:"description" validate:"max=1000"`
	ParentID    string `json:"parentId" validate:"omitempty,objectid"`
	Color       string `json:"color"`
}

// UpdateTagRequest contains fields for updating a tag.
// ParentID set to "" moves the tag to the root.
type UpdateTagRequest struct {
	Name        *string `json:"name" validate:"omitempty,tagname,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Color       *string `json:"color"`
	ParentID    *string `json:"parentId"`
}

// CreateTag creates a tag. An unknown parent creates a root tag, and a tag
// without a color gets one derived from its name.
func (s *TagService) CreateTag(ctx context.Context, req CreateTagRequest) (*domain.Tag, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	name := sanitize.Name(req.Name, maxTagName)
	if name == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"name": "is required"})
	}
	color, err := sanitize.Color(req.Color)
	if err != nil {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"color": err.Error()})
	}
	if color == "" {
		color = tagcolor.ForTag(name)
	}

	t, err := s.tags.CreateHierarchical(ctx, store.NewTag{
		Name:        name,
		Description: sanitize.Text(req.Description, maxTagDescription),
		ParentID:    req.ParentID,
		Color:       color,
	})
	if err != nil {
		return nil, err
	}

	logIndexError(s.logger, s.indexer.IndexTags(ctx, []*domain.Tag{t}), "index_tag", t.ID)
	s.events.Emit(sse.NewTagEvent(sse.EventTagCreated, t))

	s.logger.Info("tag created", "id", t.ID, "path", t.Path)
	return t, nil
}

// GetTag returns a single tag.
func (s *TagService) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	if _, err := id.Parse(tagID); err != nil {
		return nil, err
	}
	t, err := s.tags.FindByID(ctx, tagID)
	return notFound(t, err, "tag %s not found", tagID)
}

// UpdateTag renames, recolors, describes or re-parents a tag.
// A re-parent that would create a cycle is rejected with a conflict.
func (s *TagService) UpdateTag(ctx context.Context, tagID string, req UpdateTagRequest) (*domain.Tag, error) {
	if _, err := id.Parse(tagID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	// A non-nil empty ParentID is meaningful, so it skips the struct tags.
	if req.ParentID != nil && *req.ParentID != "" {
		if _, err := id.Parse(*req.ParentID); err != nil {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"parentId": "must be an object id"})
		}
	}

	current, err := s.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	oldPath := current.Path

	if req.ParentID != nil {
		if hexID, _ := id.Normalize(*req.ParentID); hexID != current.ParentID {
			moved, err := s.moveTag(ctx, tagID, *req.ParentID)
			if err != nil {
				return nil, err
			}
			oldPath = moved.Path
		}
	}

	patch := store.TagPatch{}
	if req.Name != nil {
		name := sanitize.Name(*req.Name, maxTagName)
		if name == "" {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"name": "must not be blank"})
		}
		patch.Name = &name
	}
	if req.Description != nil {
		d := sanitize.Text(*req.Description, maxTagDescription)
		patch.Description = &d
	}
	if req.Color != nil {
		color, err := sanitize.Color(*req.Color)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"color": err.Error()})
		}
		patch.Color = &color
	}

	t, err := s.tags.UpdateHierarchical(ctx, tagID, patch)
	t, err = notFound(t, err, "tag %s not found", tagID)
	if err != nil {
		return nil, err
	}

	if t.Path != oldPath {
		s.reindexSubtree(ctx, t)
		s.events.Emit(sse.NewTagMovedEvent(t, oldPath))
	} else {
		logIndexError(s.logger, s.indexer.IndexTags(ctx, []*domain.Tag{t}), "index_tag", t.ID)
		s.events.Emit(sse.NewTagEvent(sse.EventTagUpdated, t))
	}
	return t, nil
}

// MoveTag re-parents a tag and its subtree. newParentID "" makes it a root;
// an unknown parent also makes it a root.
func (s *TagService) MoveTag(ctx context.Context, tagID, newParentID string) (*domain.Tag, error) {
	if _, err := id.Parse(tagID); err != nil {
		return nil, err
	}
	if newParentID != "" {
		if _, err := id.Parse(newParentID); err != nil {
			return nil, err
		}
	}
	return s.moveTag(ctx, tagID, newParentID)
}

func (s *TagService) moveTag(ctx context.Context, tagID, newParentID string) (*domain.Tag, error) {
	before, err := s.tags.FindByID(ctx, tagID)
	if err != nil {
		return nil, err
	}

	t, err := s.tags.MoveTag(ctx, tagID, newParentID)
	switch {
	case errors.Is(err, store.ErrTagNotFound):
		return nil, domainerrors.NotFoundf("tag %s not found", tagID)
	case errors.Is(err, store.ErrTagCycle):
		return nil, domainerrors.Conflictf("cannot move tag %s under its own subtree", tagID)
	case err != nil:
		return nil, err
	case t == nil:
		return nil, domainerrors.NotFoundf("tag %s not found", tagID)
	}

	oldPath := ""
	if before != nil {
		oldPath = before.Path
	}
	s.reindexSubtree(ctx, t)
	s.events.Emit(sse.NewTagMovedEvent(t, oldPath))

	s.logger.Info("tag moved", "id", t.ID, "from", oldPath, "to", t.Path)
	return t, nil
}

// DeleteTag removes a tag and all of its descendants and returns how many
// tags were removed. Annotations keep their references.
func (s *TagService) DeleteTag(ctx context.Context, tagID string) (int, error) {
	if _, err := id.Parse(tagID); err != nil {
		return 0, err
	}
	descendants, err := s.tags.Descendants(ctx, tagID)
	if err != nil {
		return 0, err
	}

	count, err := s.tags.DeleteWithDescendants(ctx, tagID)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, domainerrors.NotFoundf("tag %s not found", tagID)
	}

	hexID, _ := id.Normalize(tagID)
	ids := make([]string, 0, len(descendants)+1)
	ids = append(ids, hexID)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}
	logIndexError(s.logger, s.indexer.DeleteTags(ctx, ids), "delete_tags", hexID)
	s.events.Emit(sse.NewTagDeletedEvent(hexID, count))

	s.logger.Info("tag deleted", "id", hexID, "removed", count)
	return count, nil
}

// GetTree returns the tag forest, or the subtree under rootID when set.
func (s *TagService) GetTree(ctx context.Context, rootID string) ([]*TagNode, error) {
	if rootID == "" {
		all, err := s.tags.Find(ctx, store.Query().OrderBy(store.Asc("path")))
		if err != nil {
			return nil, err
		}
		return BuildTree(all, ""), nil
	}

	root, err := s.GetTag(ctx, rootID)
	if err != nil {
		return nil, err
	}
	descendants, err := s.tags.Descendants(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	node := &TagNode{Tag: root, Children: BuildTree(descendants, root.ID)}
	return []*TagNode{node}, nil
}

// BuildTree nests tags under their parents starting at rootParentID.
// Tags whose parent is not in the input are treated as top-level when
// rootParentID is empty. Children keep the input order.
func BuildTree(tags []*domain.Tag, rootParentID string) []*TagNode {
	nodes := make(map[string]*TagNode, len(tags))
	for _, t := range tags {
		nodes[t.ID] = &TagNode{Tag: t, Children: []*TagNode{}}
	}

	top := []*TagNode{}
	for _, t := range tags {
		node := nodes[t.ID]
		if t.ParentID == rootParentID {
			top = append(top, node)
			continue
		}
		if parent, ok := nodes[t.ParentID]; ok {
			parent.Children = append(parent.Children, node)
			continue
		}
		if rootParentID == "" {
			top = append(top, node)
		}
	}
	return top
}

// SearchTags returns tags whose name contains query.
func (s *TagService) SearchTags(ctx context.Context, query string, limit int) ([]*domain.Tag, error) {
	if limit <= 0 {
		limit = defaultTagSearch
	}
	return s.tags.SearchByName(ctx, query, limit)
}

// GetAncestors returns the ancestors of a tag from its parent to the root.
func (s *TagService) GetAncestors(ctx context.Context, tagID string) ([]*domain.Tag, error) {
	if _, err := id.Parse(tagID); err != nil {
		return nil, err
	}
	return s.tags.Ancestors(ctx, tagID)
}

// GetDescendants returns every tag below tagID.
func (s *TagService) GetDescendants(ctx context.Context, tagID string) ([]*domain.Tag, error) {
	if _, err := id.Parse(tagID); err != nil {
		return nil, err
	}
	return s.tags.Descendants(ctx, tagID)
}

// GetChildren returns the direct children of a tag.
func (s *TagService) GetChildren(ctx context.Context, tagID string) ([]*domain.Tag, error) {
	if _, err := id.Parse(tagID); err != nil {
		return nil, err
	}
	return s.tags.Children(ctx, tagID)
}

// GetRoots returns the root tags.
func (s *TagService) GetRoots(ctx context.Context) ([]*domain.Tag, error) {
	return s.tags.Roots(ctx)
}

// GetByDepth returns tags at a depth.
func (s *TagService) GetByDepth(ctx context.Context, depth int) ([]*domain.Tag, error) {
	if depth < 0 {
		return nil, domainerrors.Validation("depth must not be negative")
	}
	return s.tags.FindByDepth(ctx, depth)
}

// MostUsed returns the most referenced tags.
func (s *TagService) MostUsed(ctx context.Context, limit int) ([]*domain.Tag, error) {
	return s.tags.MostUsed(ctx, limit)
}

// reindexSubtree refreshes t and its descendants after a path change.
func (s *TagService) reindexSubtree(ctx context.Context, t *domain.Tag) {
	descendants, err := s.tags.Descendants(ctx, t.ID)
	if err != nil {
		s.logger.Warn("failed to load subtree for reindex", "tag_id", t.ID, "error", err)
		descendants = nil
	}
	logIndexError(s.logger, s.indexer.IndexTags(ctx, append([]*domain.Tag{t}, descendants...)), "index_tags", t.ID)
}
