package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestIndex creates an in-memory search index for testing.
func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func conf(v float64) *float64 { return &v }

func seed(t *testing.T, index *SearchIndex) {
	t.Helper()
	require.NoError(t, index.IndexDocuments([]*SearchDocument{
		{ID: "p1", Type: DocTypeProject, Name: "Wildlife survey", Labels: []string{"birds"}, Status: "active"},
		{ID: "i1", Type: DocTypeImage, Name: "owl-at-night.png", ProjectID: "p1", Status: "pending"},
		{ID: "i2", Type: DocTypeImage, Name: "city-street.jpg", ProjectID: "p2", Status: "annotated"},
		{ID: "t1", Type: DocTypeTag, Name: "Animal", Path: "Animal", UsageCount: 1},
		{ID: "t2", Type: DocTypeTag, Name: "Owl", Path: "Animal/Bird/Owl", UsageCount: 7},
		{ID: "t3", Type: DocTypeTag, Name: "Animalia", Path: "Animalia", UsageCount: 3},
		{ID: "a1", Type: DocTypeAnnotation, Description: "owl perched on a branch", ImageID: "i1",
			Source: "manual", Tags: []string{"t2"}, Confidence: conf(0.4)},
		{ID: "a2", Type: DocTypeAnnotation, Description: "second owl", ImageID: "i1",
			Source: "ml:yolo", Tags: []string{"t2", "t1"}, Confidence: conf(0.9)},
		{ID: "a3", Type: DocTypeAnnotation, Description: "car", ImageID: "i2", Source: "ml:yolo"},
	}))
}

func hitIDs(r *SearchResult) []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.ID
	}
	return out
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexAndDelete(t *testing.T) {
	index := setupTestIndex(t)

	require.NoError(t, index.IndexDocument(&SearchDocument{ID: "t1", Type: DocTypeTag, Name: "Cat"}))
	require.NoError(t, index.IndexDocument(&SearchDocument{ID: "t1", Type: DocTypeTag, Name: "Kitten"}))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count, "reindexing replaces")

	require.NoError(t, index.DeleteDocuments([]string{"t1", "missing"}))
	require.NoError(t, index.DeleteDocuments(nil))

	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearchIndex_Search(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)
	ctx := context.Background()

	tests := []struct {
		name   string
		params SearchParams
		want   []string
	}{
		{"text across types", SearchParams{Query: "owl", Types: []DocType{DocTypeTag, DocTypeImage}}, []string{"i1", "t2"}},
		{"tag path segment", SearchParams{Query: "bird", Types: []DocType{DocTypeTag}}, []string{"t2"}},
		{"annotation description", SearchParams{Query: "branch"}, []string{"a1"}},
		{"by image", SearchParams{ImageID: "i1"}, []string{"a1", "a2"}},
		{"by project", SearchParams{ProjectID: "p1"}, []string{"i1"}},
		{"any tag", SearchParams{TagIDs: []string{"t1", "missing"}}, []string{"a2"}},
		{"source", SearchParams{Source: "ml:yolo"}, []string{"a2", "a3"}},
		{"status", SearchParams{Status: "annotated"}, []string{"i2"}},
		{"subtree", SearchParams{PathPrefix: "Animal"}, []string{"t1", "t2"}},
		{"confidence inclusive", SearchParams{MinConfidence: conf(0.4), MaxConfidence: conf(0.5)}, []string{"a1"}},
		{"min confidence only", SearchParams{MinConfidence: conf(0.5)}, []string{"a2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := index.Search(ctx, tt.params)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, hitIDs(result))
		})
	}
}

func TestSearchIndex_SortAndPage(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)
	ctx := context.Background()

	result, err := index.Search(ctx, SearchParams{Types: []DocType{DocTypeTag}, SortBy: SortUsage})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3", "t1"}, hitIDs(result))

	result, err = index.Search(ctx, SearchParams{Types: []DocType{DocTypeTag}, SortBy: SortUsage, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result.Total)
	assert.Equal(t, []string{"t3"}, hitIDs(result))
}

func TestSearchIndex_HitsAndFacets(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	params := DefaultSearchParams()
	params.ImageID = "i1"
	params.MinConfidence = conf(0.8)

	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)

	hit := result.Hits[0]
	assert.Equal(t, DocTypeAnnotation, hit.Type)
	assert.Equal(t, "i1", hit.ImageID)
	assert.Equal(t, "ml:yolo", hit.Source)
	require.NotNil(t, hit.Confidence)
	assert.InDelta(t, 0.9, *hit.Confidence, 1e-9)

	assert.Equal(t, []FacetCount{{Value: "annotation", Count: 1}}, result.Facets.Types)
	assert.ElementsMatch(t, []FacetCount{{Value: "t1", Count: 1}, {Value: "t2", Count: 1}}, result.Facets.Tags)
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.Rebuild())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearchIndex_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.bleve")

	index1, err := NewSearchIndex(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, index1.IndexDocument(&SearchDocument{ID: "t1", Type: DocTypeTag, Name: "Heron"}))
	require.NoError(t, index1.Close())

	index2, err := NewSearchIndex(Options{Path: path})
	require.NoError(t, err)
	defer index2.Close()

	result, err := index2.Search(context.Background(), SearchParams{Query: "heron"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, hitIDs(result))
}

func TestDocumentConverters(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tag := &domain.Tag{Name: "Cat", Path: "Animal/Cat", UsageCount: 2}
	tag.ID, tag.CreatedAt, tag.UpdatedAt = "t", now, now
	doc := TagToSearchDocument(tag)
	assert.Equal(t, DocTypeTag, doc.Type)
	assert.Equal(t, "Animal/Cat", doc.ToMap()["path_exact"])
	assert.Equal(t, now.UnixMilli(), doc.CreatedAt)

	a := &domain.Annotation{ImageID: "i", Description: "x", Source: "manual", Tags: []string{"t"}}
	a.ID = "a"
	m := AnnotationToSearchDocument(a).ToMap()
	assert.NotContains(t, m, "confidence")
	assert.Equal(t, []string{"t"}, m["tags"])

	img := ImageToSearchDocument(&domain.Image{Filename: "f.png", ProjectID: "p", Status: domain.ImagePending})
	assert.Equal(t, "f.png", img.Name)
	assert.Equal(t, "pending", img.ToMap()["status"])

	p := ProjectToSearchDocument(&domain.Project{Name: "P", Labels: []string{"l"}})
	assert.Equal(t, []string{"l"}, p.ToMap()["labels"])
}

func TestSearchParams_Defaults(t *testing.T) {
	params := DefaultSearchParams()
	assert.Equal(t, 20, params.Limit)
	assert.Equal(t, SortRelevance, params.SortBy)
	assert.True(t, params.IncludeFacets)
}
