package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ilbumi/satin/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search",
		Description: "Full-text search across projects, images, tags, and annotations",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindex",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/reindex",
		Summary:     "Rebuild search index",
		Description: "Drops the index and re-indexes every document from the store",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReindex)
}

// === DTOs ===

// SearchInput contains parameters for searching.
type SearchInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" maxLength:"200" doc:"Search query; empty matches everything"`
	Types         string `query:"types" maxLength:"100" doc:"Comma-separated types (project,image,tag,annotation). Omit for all."`
	ProjectID     string `query:"projectId" doc:"Filter by project"`
	ImageID       string `query:"imageId" doc:"Filter by image"`
	TagIDs        string `query:"tags" maxLength:"1000" doc:"Comma-separated tag IDs; annotations referencing any of them"`
	Source        string `query:"source" doc:"Filter annotations by source"`
	Status        string `query:"status" doc:"Filter projects or images by status"`
	PathPrefix    string `query:"path" maxLength:"500" doc:"Tags at or below this path, e.g. Animal/Mammal"`
	MinConfidence string `query:"minConfidence" doc:"Inclusive lower confidence bound"`
	MaxConfidence string `query:"maxConfidence" doc:"Inclusive upper confidence bound"`
	Limit         int    `query:"limit" default:"20" minimum:"1" maximum:"500" doc:"Maximum hits"`
	Offset        int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	SortBy        string `query:"sort" enum:"relevance,name,recent,usage" default:"relevance" doc:"Sort field"`
	SortOrder     string `query:"order" enum:"asc,desc" default:"desc" doc:"Sort direction"`
	Facets        bool   `query:"facets" doc:"Include facets in response"`
	Highlight     bool   `query:"highlight" doc:"Include highlighted matches"`
}

// SearchHitResult contains a single search result.
type SearchHitResult struct {
	ID          string            `json:"id" doc:"Entity ID"`
	Type        string            `json:"type" doc:"Type: project, image, tag, or annotation"`
	Score       float64           `json:"score" doc:"Search relevance score"`
	Name        string            `json:"name,omitempty" doc:"Display name"`
	Description string            `json:"description,omitempty" doc:"Description"`
	Path        string            `json:"path,omitempty" doc:"Tag path or image filename"`
	ProjectID   string            `json:"projectId,omitempty" doc:"Owning project"`
	ImageID     string            `json:"imageId,omitempty" doc:"Owning image (for annotations)"`
	Status      string            `json:"status,omitempty" doc:"Status"`
	Source      string            `json:"source,omitempty" doc:"Annotation source"`
	Confidence  *float64          `json:"confidence,omitempty" doc:"Annotation confidence"`
	Highlights  map[string]string `json:"highlights,omitempty" doc:"Highlighted matches"`
}

// SearchFacets contains facet counts for filtering.
type SearchFacets struct {
	Types    []FacetCount `json:"types,omitempty" doc:"Type facets"`
	Tags     []FacetCount `json:"tags,omitempty" doc:"Tag facets"`
	Sources  []FacetCount `json:"sources,omitempty" doc:"Annotation source facets"`
	Statuses []FacetCount `json:"statuses,omitempty" doc:"Status facets"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value" doc:"Facet value"`
	Count int    `json:"count" doc:"Number of matches"`
}

// SearchResponse contains search results.
type SearchResponse struct {
	Query  string            `json:"query" doc:"Normalized search query"`
	Total  uint64            `json:"total" doc:"Total matches"`
	TookMs int64             `json:"tookMs" doc:"Search duration in milliseconds"`
	Hits   []SearchHitResult `json:"hits" doc:"Search results"`
	Facets *SearchFacets     `json:"facets,omitempty" doc:"Facet counts for filtering"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// ReindexInput contains parameters for a rebuild.
type ReindexInput struct {
	Authorization string `header:"Authorization"`
}

// ReindexResponse reports the size of the rebuilt index.
type ReindexResponse struct {
	Documents uint64 `json:"documents" doc:"Documents in the index after the rebuild"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	minConf, err := parseOptionalFloat("minConfidence", input.MinConfidence)
	if err != nil {
		return nil, err
	}
	maxConf, err := parseOptionalFloat("maxConfidence", input.MaxConfidence)
	if err != nil {
		return nil, err
	}

	params := search.SearchParams{
		Query:         input.Query,
		ProjectID:     input.ProjectID,
		ImageID:       input.ImageID,
		TagIDs:        splitCSV(input.TagIDs),
		Source:        input.Source,
		Status:        input.Status,
		PathPrefix:    input.PathPrefix,
		MinConfidence: minConf,
		MaxConfidence: maxConf,
		Limit:         input.Limit,
		Offset:        input.Offset,
		SortBy:        input.SortBy,
		SortOrder:     input.SortOrder,
		IncludeFacets: input.Facets,
		Highlight:     input.Highlight,
	}
	for _, t := range splitCSV(input.Types) {
		params.Types = append(params.Types, search.DocType(t))
	}

	s.logger.Debug("Search request received",
		"query", input.Query,
		"types", input.Types,
		"limit", input.Limit,
	)

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Search completed",
		"query", result.Query,
		"total", result.Total,
		"took_ms", result.TookMs,
	)

	resp := SearchResponse{
		Query:  result.Query,
		Total:  result.Total,
		TookMs: result.TookMs,
		Hits:   make([]SearchHitResult, 0, len(result.Hits)),
	}
	for i := range result.Hits {
		hit := &result.Hits[i]
		resp.Hits = append(resp.Hits, SearchHitResult{
			ID:          hit.ID,
			Type:        string(hit.Type),
			Score:       hit.Score,
			Name:        hit.Name,
			Description: hit.Description,
			Path:        hit.Path,
			ProjectID:   hit.ProjectID,
			ImageID:     hit.ImageID,
			Status:      hit.Status,
			Source:      hit.Source,
			Confidence:  hit.Confidence,
			Highlights:  hit.Highlights,
		})
	}
	if input.Facets {
		resp.Facets = &SearchFacets{
			Types:    mapFacets(result.Facets.Types),
			Tags:     mapFacets(result.Facets.Tags),
			Sources:  mapFacets(result.Facets.Sources),
			Statuses: mapFacets(result.Facets.Statuses),
		}
	}

	return &SearchOutput{Body: resp}, nil
}

func (s *Server) handleReindex(ctx context.Context, input *ReindexInput) (*ReindexOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Search.ReindexAll(ctx); err != nil {
		return nil, err
	}
	count, err := s.services.Search.DocumentCount()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Search index rebuilt", "documents", count)
	return &ReindexOutput{Body: ReindexResponse{Documents: count}}, nil
}

func mapFacets(in []search.FacetCount) []FacetCount {
	if len(in) == 0 {
		return nil
	}
	out := make([]FacetCount, len(in))
	for i, f := range in {
		out[i] = FacetCount{Value: f.Value, Count: f.Count}
	}
	return out
}

