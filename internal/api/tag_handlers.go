package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns root tags, or tags whose name contains q",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTag",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags",
		Summary:       "Create tag",
		Description:   "Creates a tag. An unknown parent creates a root tag",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagTree",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/tree",
		Summary:     "Get tag tree",
		Description: "Returns the nested tag forest, or the subtree under rootId",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTagTree)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPopularTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/popular",
		Summary:     "List popular tags",
		Description: "Returns the most used tags",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListPopularTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTagsAtDepth",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/depth/{depth}",
		Summary:     "List tags at depth",
		Description: "Returns tags at a hierarchy level; 0 is the roots",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTagsAtDepth)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Description: "Returns a tag by ID",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTag",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Update tag",
		Description: "Updates a tag. Renames and parent changes rewrite the subtree paths",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Delete tag",
		Description: "Deletes a tag and its descendants",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "moveTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/{id}/move",
		Summary:     "Move tag",
		Description: "Re-parents a tag with its subtree. Moving under its own subtree is a conflict",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMoveTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagAncestors",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}/ancestors",
		Summary:     "Get tag ancestors",
		Description: "Returns the ancestors of a tag, nearest first",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTagAncestors)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagDescendants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}/descendants",
		Summary:     "Get tag descendants",
		Description: "Returns every tag below a tag",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTagDescendants)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagChildren",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}/children",
		Summary:     "Get tag children",
		Description: "Returns the direct children of a tag",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTagChildren)
}

// === DTOs ===

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID          string    `json:"id" doc:"Tag ID"`
	Name        string    `json:"name" doc:"Tag name"`
	Description string    `json:"description,omitempty" doc:"Tag description"`
	Color       string    `json:"color,omitempty" doc:"Display color, #rrggbb"`
	ParentID    string    `json:"parentId,omitempty" doc:"Parent tag, empty for roots"`
	Path        string    `json:"path" doc:"Materialized path, e.g. Animal/Mammal/Dog"`
	Depth       int       `json:"depth" doc:"0 for roots"`
	UsageCount  int       `json:"usageCount" doc:"Times referenced by new annotations"`
	CreatedAt   time.Time `json:"createdAt" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updatedAt" doc:"Last update time"`
}

// TagTreeNode is a tag with its nested children.
type TagTreeNode struct {
	TagResponse
	Children []TagTreeNode `json:"children" doc:"Child nodes"`
}

// ListTagsInput contains parameters for listing tags.
type ListTagsInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" doc:"Name substring; empty lists root tags"`
	Limit         int    `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum search results"`
}

// ListTagsResponse contains a list of tags.
type ListTagsResponse struct {
	Tags []TagResponse `json:"tags" doc:"List of tags"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body ListTagsResponse
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name        string `json:"name" minLength:"1" maxLength:"100" doc:"Tag name, must not contain /"`
	Description string `json:"description,omitempty" maxLength:"1000" doc:"Tag description"`
	ParentID    string `json:"parentId,omitempty" doc:"Parent tag ID"`
	Color       string `json:"color,omitempty" doc:"Display color, #rrggbb"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateTagRequest
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// GetTagInput contains parameters for getting a tag.
type GetTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Tag ID"`
}

// UpdateTagRequest is the request body for updating a tag.
type UpdateTagRequest struct {
	Name        *string `json:"name,omitempty" maxLength:"100" doc:"Tag name"`
	Description *string `json:"description,omitempty" maxLength:"1000" doc:"Tag description"`
	Color       *string `json:"color,omitempty" doc:"Display color"`
	ParentID    *string `json:"parentId,omitempty" doc:"New parent; empty string makes the tag a root"`
}

// UpdateTagInput wraps the update tag request for Huma.
type UpdateTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Tag ID"`
	Body          UpdateTagRequest
}

// DeleteTagResponse reports how many tags were removed.
type DeleteTagResponse struct {
	Deleted int `json:"deleted" doc:"The tag plus its descendants"`
}

// DeleteTagOutput wraps the delete tag response for Huma.
type DeleteTagOutput struct {
	Body DeleteTagResponse
}

// MoveTagRequest is the request body for moving a tag.
type MoveTagRequest struct {
	ParentID string `json:"parentId,omitempty" doc:"New parent; empty makes the tag a root"`
}

// MoveTagInput wraps the move tag request for Huma.
type MoveTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Tag ID"`
	Body          MoveTagRequest
}

// TagTreeInput contains parameters for the tag tree.
type TagTreeInput struct {
	Authorization string `header:"Authorization"`
	RootID        string `query:"rootId" doc:"Only the subtree under this tag"`
}

// TagTreeResponse contains the nested tag forest.
type TagTreeResponse struct {
	Roots []TagTreeNode `json:"roots" doc:"Top-level nodes"`
}

// TagTreeOutput wraps the tag tree for Huma.
type TagTreeOutput struct {
	Body TagTreeResponse
}

// PopularTagsInput contains parameters for popular tags.
type PopularTagsInput struct {
	Authorization string `header:"Authorization"`
	Limit         int    `query:"limit" default:"10" minimum:"1" maximum:"100" doc:"Maximum tags"`
}

// TagsAtDepthInput contains parameters for listing tags by depth.
type TagsAtDepthInput struct {
	Authorization string `header:"Authorization"`
	Depth         int    `path:"depth" minimum:"0" doc:"Hierarchy level"`
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, input *ListTagsInput) (*ListTagsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	var (
		tags []*domain.Tag
		err  error
	)
	if input.Query != "" {
		tags, err = s.services.Tags.SearchTags(ctx, input.Query, input.Limit)
	} else {
		tags, err = s.services.Tags.GetRoots(ctx)
	}
	if err != nil {
		return nil, err
	}

	return tagList(tags), nil
}

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	t, err := s.services.Tags.CreateTag(ctx, service.CreateTagRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		ParentID:    input.Body.ParentID,
		Color:       input.Body.Color,
	})
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTagResponse(t)}, nil
}

func (s *Server) handleGetTagTree(ctx context.Context, input *TagTreeInput) (*TagTreeOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	nodes, err := s.services.Tags.GetTree(ctx, input.RootID)
	if err != nil {
		return nil, err
	}

	return &TagTreeOutput{Body: TagTreeResponse{Roots: mapTagTree(nodes)}}, nil
}

func (s *Server) handleListPopularTags(ctx context.Context, input *PopularTagsInput) (*ListTagsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tags, err := s.services.Tags.MostUsed(ctx, input.Limit)
	if err != nil {
		return nil, err
	}

	return tagList(tags), nil
}

func (s *Server) handleListTagsAtDepth(ctx context.Context, input *TagsAtDepthInput) (*ListTagsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tags, err := s.services.Tags.GetByDepth(ctx, input.Depth)
	if err != nil {
		return nil, err
	}

	return tagList(tags), nil
}

func (s *Server) handleGetTag(ctx context.Context, input *GetTagInput) (*TagOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	t, err := s.services.Tags.GetTag(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTagResponse(t)}, nil
}

func (s *Server) handleUpdateTag(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	t, err := s.services.Tags.UpdateTag(ctx, input.ID, service.UpdateTagRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Color:       input.Body.Color,
		ParentID:    input.Body.ParentID,
	})
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTagResponse(t)}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *GetTagInput) (*DeleteTagOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	count, err := s.services.Tags.DeleteTag(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &DeleteTagOutput{Body: DeleteTagResponse{Deleted: count}}, nil
}

func (s *Server) handleMoveTag(ctx context.Context, input *MoveTagInput) (*TagOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	t, err := s.services.Tags.MoveTag(ctx, input.ID, input.Body.ParentID)
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTagResponse(t)}, nil
}

func (s *Server) handleGetTagAncestors(ctx context.Context, input *GetTagInput) (*ListTagsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tags, err := s.services.Tags.GetAncestors(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return tagList(tags), nil
}

func (s *Server) handleGetTagDescendants(ctx context.Context, input *GetTagInput) (*ListTagsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tags, err := s.services.Tags.GetDescendants(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return tagList(tags), nil
}

func (s *Server) handleGetTagChildren(ctx context.Context, input *GetTagInput) (*ListTagsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tags, err := s.services.Tags.GetChildren(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return tagList(tags), nil
}

// === Mappers ===

func mapTagResponse(t *domain.Tag) TagResponse {
	return TagResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Color:       t.Color,
		ParentID:    t.ParentID,
		Path:        t.Path,
		Depth:       t.Depth,
		UsageCount:  t.UsageCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTagTree(nodes []*service.TagNode) []TagTreeNode {
	out := make([]TagTreeNode, len(nodes))
	for i, n := range nodes {
		out[i] = TagTreeNode{TagResponse: mapTagResponse(n.Tag), Children: mapTagTree(n.Children)}
	}
	return out
}

func tagList(tags []*domain.Tag) *ListTagsOutput {
	resp := make([]TagResponse, len(tags))
	for i, t := range tags {
		resp[i] = mapTagResponse(t)
	}
	return &ListTagsOutput{Body: ListTagsResponse{Tags: resp}}
}
