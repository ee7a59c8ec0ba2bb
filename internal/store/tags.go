package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
)

// DefaultMostUsedLimit is used when MostUsed is called with a non-positive limit.
const DefaultMostUsedLimit = 10

// NewTag is the input for creating a tag.
type NewTag struct {
	Name        string
	Description string
	ParentID    string
	Color       string
}

// TagPatch holds optional tag changes. ParentID pointing at "" moves the
// tag to the root.
type TagPatch struct {
	Name        *string
	Description *string
	Color       *string
	ParentID    *string
}

// TagRepository maintains the tag forest with materialized paths.
//
// Multi-document changes (move, rename) rewrite descendants one at a time
// without a transaction; a failure part way leaves earlier rewrites in place.
type TagRepository struct {
	*Collection[domain.Tag]
	logger *slog.Logger
}

// NewTagRepository creates the tag repository.
func NewTagRepository(b Backend, cache *Cache, logger *slog.Logger) *TagRepository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := NewCollection[domain.Tag](b, CollectionTags).
		WithIndex("parentId", func(t *domain.Tag) []string { return []string{t.ParentID} }).
		WithIndex("name", func(t *domain.Tag) []string { return []string{t.Name} }).
		WithCache(cache).
		WithLogger(logger)

	return &TagRepository{Collection: c, logger: logger}
}

// CreateHierarchical inserts a tag under its parent. A parent id that does
// not resolve makes the new tag a root rather than failing.
func (r *TagRepository) CreateHierarchical(ctx context.Context, in NewTag) (*domain.Tag, error) {
	t := &domain.Tag{
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
	}

	var parent *domain.Tag
	if in.ParentID != "" {
		var err error
		if parent, err = r.FindByID(ctx, in.ParentID); err != nil {
			return nil, err
		}
	}
	r.place(t, parent)

	if in.ParentID != "" && parent == nil {
		r.logger.Debug("parent tag not found, creating root", "name", in.Name, "parent_id", in.ParentID)
	}

	return r.InsertOne(ctx, t)
}

// Move re-parents a tag (newParentID "" moves it to the root) and rewrites
// the subtree's paths. It returns nil when the tag does not exist or the
// move would create a cycle; MoveTag tells the two apart.
func (r *TagRepository) Move(ctx context.Context, tagID, newParentID string) (*domain.Tag, error) {
	t, err := r.MoveTag(ctx, tagID, newParentID)
	if errors.Is(err, ErrTagNotFound) || errors.Is(err, ErrTagCycle) {
		return nil, nil
	}
	return t, err
}

// MoveTag is Move reporting ErrTagNotFound and ErrTagCycle.
// A new parent that does not resolve makes the tag a root.
func (r *TagRepository) MoveTag(ctx context.Context, tagID, newParentID string) (*domain.Tag, error) {
	t, err := r.FindByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTagNotFound
	}

	var parent *domain.Tag
	if newParentID != "" {
		if hexID, ok := id.Normalize(newParentID); ok && hexID == t.ID {
			return nil, ErrTagCycle
		}

		descendants, err := r.Descendants(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		for _, d := range descendants {
			if hexID, ok := id.Normalize(newParentID); ok && d.ID == hexID {
				return nil, ErrTagCycle
			}
		}

		if parent, err = r.FindByID(ctx, newParentID); err != nil {
			return nil, err
		}
	}

	oldPath, oldDepth := t.Path, t.Depth
	r.place(t, parent)

	moved, err := r.UpdateOne(ctx, t.ID, Set{
		"parentId": t.ParentID,
		"path":     t.Path,
		"depth":    t.Depth,
	})
	if err != nil || moved == nil {
		return nil, err
	}

	if err := r.rewriteDescendants(ctx, oldPath, moved.Path, moved.Depth-oldDepth); err != nil {
		return nil, err
	}

	r.logger.Debug("tag moved", "tag_id", moved.ID, "from", oldPath, "to", moved.Path)
	return moved, nil
}

// UpdateHierarchical applies a patch. A parent change runs the move logic
// first; a rename rewrites descendant paths. It returns nil when the tag
// does not exist or the move is rejected.
func (r *TagRepository) UpdateHierarchical(ctx context.Context, tagID string, patch TagPatch) (*domain.Tag, error) {
	t, err := r.FindByID(ctx, tagID)
	if err != nil || t == nil {
		return nil, err
	}

	if patch.ParentID != nil && normalizeRef(*patch.ParentID) != t.ParentID {
		if t, err = r.Move(ctx, t.ID, *patch.ParentID); err != nil || t == nil {
			return nil, err
		}
	}

	set := Set{}
	if patch.Name != nil && *patch.Name != t.Name {
		oldPath := t.Path
		t.Name = *patch.Name
		t.Path = t.BuildPath(parentPath(oldPath))
		set["name"] = t.Name
		set["path"] = t.Path

		// Descendants are rewritten before the tag itself so that a failure
		// here leaves the tag with its old name.
		if err := r.rewriteDescendants(ctx, oldPath, t.Path, 0); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Color != nil {
		set["color"] = *patch.Color
	}

	if len(set) == 0 {
		return t, nil
	}
	return r.UpdateOne(ctx, t.ID, set)
}

// DeleteWithDescendants removes a tag and its whole subtree in one batch
// and returns how many tags were removed. Annotation references to the
// removed tags are left as they are.
func (r *TagRepository) DeleteWithDescendants(ctx context.Context, tagID string) (int, error) {
	t, err := r.FindByID(ctx, tagID)
	if err != nil || t == nil {
		return 0, err
	}

	descendants, err := r.Descendants(ctx, t.ID)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(descendants)+1)
	ids = append(ids, t.ID)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}
	return r.DeleteIDs(ctx, ids)
}

// Descendants returns every tag below tagID, ordered by path.
func (r *TagRepository) Descendants(ctx context.Context, tagID string) ([]*domain.Tag, error) {
	t, err := r.FindByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return []*domain.Tag{}, nil
	}
	return r.descendantsOfPath(ctx, t.Path)
}

// Ancestors returns the strict ancestors of tagID from its parent up to
// the root. A dangling parent reference ends the walk.
func (r *TagRepository) Ancestors(ctx context.Context, tagID string) ([]*domain.Tag, error) {
	t, err := r.FindByID(ctx, tagID)
	if err != nil {
		return nil, err
	}

	ancestors := []*domain.Tag{}
	if t == nil {
		return ancestors, nil
	}

	visited := map[string]bool{t.ID: true}
	for cur := t; cur.ParentID != ""; {
		parent, err := r.FindByID(ctx, cur.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || visited[parent.ID] {
			break
		}
		visited[parent.ID] = true
		ancestors = append(ancestors, parent)
		cur = parent
	}
	return ancestors, nil
}

// Roots returns tags without a parent, ordered by name.
func (r *TagRepository) Roots(ctx context.Context) ([]*domain.Tag, error) {
	return r.Find(ctx, Query(Missing("parentId")).OrderBy(Asc("name")))
}

// Children returns the direct children of parentID, ordered by name.
func (r *TagRepository) Children(ctx context.Context, parentID string) ([]*domain.Tag, error) {
	hexID, ok := id.Normalize(parentID)
	if !ok {
		return []*domain.Tag{}, nil
	}
	return r.Find(ctx, Query(Eq("parentId", hexID)).OrderBy(Asc("name")))
}

// SearchByName returns tags whose name contains query, ignoring case.
func (r *TagRepository) SearchByName(ctx context.Context, query string, limit int) ([]*domain.Tag, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Tag{}, nil
	}
	return r.Find(ctx, Query(Contains("name", query, true)).OrderBy(Asc("path")).Page(0, limit))
}

// FindByDepth returns tags at the given depth, ordered by path.
func (r *TagRepository) FindByDepth(ctx context.Context, depth int) ([]*domain.Tag, error) {
	return r.Find(ctx, Query(Eq("depth", depth)).OrderBy(Asc("path")))
}

// MostUsed returns the tags with the highest usage count.
func (r *TagRepository) MostUsed(ctx context.Context, limit int) ([]*domain.Tag, error) {
	if limit <= 0 {
		limit = DefaultMostUsedLimit
	}
	return r.Find(ctx, Query().OrderBy(Desc("usageCount"), Asc("name")).Page(0, limit))
}

// IncrementUsageCount atomically adds one to a tag's usage count and
// reports whether the tag exists.
func (r *TagRepository) IncrementUsageCount(ctx context.Context, tagID string) (bool, error) {
	return r.IncrementOne(ctx, tagID, "usageCount", 1)
}

// place sets the parent, path and depth of t under parent (nil for root).
func (r *TagRepository) place(t *domain.Tag, parent *domain.Tag) {
	if parent == nil {
		t.ParentID = ""
		t.Path = t.BuildPath("")
		t.Depth = 0
		return
	}
	t.ParentID = parent.ID
	t.Path = t.BuildPath(parent.Path)
	t.Depth = parent.Depth + 1
}

func (r *TagRepository) descendantsOfPath(ctx context.Context, path string) ([]*domain.Tag, error) {
	return r.Find(ctx, Query(HasPrefix("path", path+domain.PathSeparator)).OrderBy(Asc("path")))
}

// rewriteDescendants substitutes the path prefix of every tag below oldPath
// and shifts its depth by depthDelta, one document at a time.
func (r *TagRepository) rewriteDescendants(ctx context.Context, oldPath, newPath string, depthDelta int) error {
	if oldPath == newPath && depthDelta == 0 {
		return nil
	}

	descendants, err := r.descendantsOfPath(ctx, oldPath)
	if err != nil {
		return err
	}

	for _, d := range descendants {
		path := newPath + strings.TrimPrefix(d.Path, oldPath)
		if _, err := r.UpdateOne(ctx, d.ID, Set{
			"path":  path,
			"depth": d.Depth + depthDelta,
		}); err != nil {
			return fmt.Errorf("rewrite descendant %s: %w", d.ID, err)
		}
	}
	return nil
}

// parentPath strips the last segment of a path ("" for a root path).
func parentPath(path string) string {
	if i := strings.LastIndex(path, domain.PathSeparator); i >= 0 {
		return path[:i]
	}
	return ""
}

// normalizeRef canonicalizes an optional reference for comparison.
func normalizeRef(ref string) string {
	if hexID, ok := id.Normalize(ref); ok {
		return hexID
	}
	return ref
}
