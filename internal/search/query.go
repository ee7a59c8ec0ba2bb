package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Sort keys accepted by SearchParams.SortBy.
const (
	SortRelevance = "relevance"
	SortName      = "name"
	SortRecent    = "recent"
	SortUsage     = "usage"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string    // User's search query
	Types []DocType // Document types to include (empty = all)

	// Filters
	ProjectID     string
	ImageID       string
	TagIDs        []string // annotations referencing any of these tags
	Source        string
	Status        string
	PathPrefix    string   // tags at or below this materialized path
	MinConfidence *float64 // inclusive
	MaxConfidence *float64 // inclusive

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // relevance, name, recent, usage
	SortOrder string // asc, desc

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        SortRelevance,
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"tookMs"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitzero"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID          string            `json:"id"`
	Type        DocType           `json:"type"`
	Score       float64           `json:"score"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Path        string            `json:"path,omitempty"`
	ProjectID   string            `json:"projectId,omitempty"`
	ImageID     string            `json:"imageId,omitempty"`
	Status      string            `json:"status,omitempty"`
	Source      string            `json:"source,omitempty"`
	Confidence  *float64          `json:"confidence,omitempty"`
	Highlights  map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Types    []FacetCount `json:"types,omitempty"`
	Tags     []FacetCount `json:"tags,omitempty"`
	Sources  []FacetCount `json:"sources,omitempty"`
	Statuses []FacetCount `json:"statuses,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

var facetFields = map[string]func(*SearchFacets) *[]FacetCount{
	"type":   func(f *SearchFacets) *[]FacetCount { return &f.Types },
	"tags":   func(f *SearchFacets) *[]FacetCount { return &f.Tags },
	"source": func(f *SearchFacets) *[]FacetCount { return &f.Sources },
	"status": func(f *SearchFacets) *[]FacetCount { return &f.Statuses },
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		for field := range facetFields {
			searchRequest.AddFacet(field, bleve.NewFacetRequest(field, 20))
		}
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("description")
	}

	searchRequest.Fields = []string{
		"id", "type", "name", "description", "path", "project_id",
		"image_id", "status", "source", "confidence",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := SearchHit{ID: hit.ID, Score: hit.Score}
		str := func(field string) string {
			v, _ := hit.Fields[field].(string)
			return v
		}
		h.Type = DocType(str("type"))
		h.Name = str("name")
		h.Description = str("description")
		h.Path = str("path")
		h.ProjectID = str("project_id")
		h.ImageID = str("image_id")
		h.Status = str("status")
		h.Source = str("source")
		if c, ok := hit.Fields["confidence"].(float64); ok {
			h.Confidence = &c
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		pathMatch := bleve.NewMatchQuery(q)
		pathMatch.SetField("path")
		pathMatch.SetBoost(1.5)

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")

		// Fuzzy matching for typo tolerance on name
		fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, pathMatch, descMatch, fuzzyQuery}

		// Prefix query for autocomplete (minimum 2 chars)
		if len(q) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(q))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			typeQueries[i] = term("type", string(t))
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	if len(params.TagIDs) > 0 {
		tagQueries := make([]query.Query, len(params.TagIDs))
		for i, t := range params.TagIDs {
			tagQueries[i] = term("tags", t)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(tagQueries...))
	}

	for field, value := range map[string]string{
		"project_id": params.ProjectID,
		"image_id":   params.ImageID,
		"source":     params.Source,
		"status":     params.Status,
	} {
		if value != "" {
			queries = append(queries, term(field, value))
		}
	}

	if params.PathPrefix != "" {
		exact := term("path_exact", params.PathPrefix)
		below := bleve.NewPrefixQuery(params.PathPrefix + "/")
		below.SetField("path_exact")
		queries = append(queries, bleve.NewDisjunctionQuery(exact, below))
	}

	if params.MinConfidence != nil || params.MaxConfidence != nil {
		inclusive := true
		rangeQuery := bleve.NewNumericRangeInclusiveQuery(params.MinConfidence, params.MaxConfidence, &inclusive, &inclusive)
		rangeQuery.SetField("confidence")
		queries = append(queries, rangeQuery)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func term(field, value string) query.Query {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	desc := params.SortOrder != "asc"
	order := func(field string) string {
		if desc {
			return "-" + field
		}
		return field
	}

	switch params.SortBy {
	case SortName:
		// Names sort ascending unless asked otherwise.
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-name", "-_id"})
		} else {
			req.SortBy([]string{"name", "_id"})
		}
	case SortRecent:
		req.SortBy([]string{order("created_at"), "_id"})
	case SortUsage:
		req.SortBy([]string{order("usage_count"), "name"})
	default:
		req.SortBy([]string{"-_score", "_id"})
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) SearchFacets {
	facets := SearchFacets{}
	for field, target := range facetFields {
		facet, ok := result.Facets[field]
		if !ok || facet.Terms == nil {
			continue
		}
		dst := target(&facets)
		for _, t := range facet.Terms.Terms() {
			*dst = append(*dst, FacetCount{Value: t.Term, Count: t.Count})
		}
	}
	return facets
}
