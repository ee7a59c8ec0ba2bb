package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for search documents.
//
// Names and descriptions are full text with English stemming. References
// (project, image, tag ids), paths and enums are keywords for exact
// filtering and faceting. Confidence and timestamps are numeric.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields ---

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = en.AnalyzerName
	descFieldMapping.Store = true
	descFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	// Tag paths tokenize on "/" so "Animal/Mammal/Cat" matches "mammal".
	pathTextMapping := bleve.NewTextFieldMapping()
	pathTextMapping.Analyzer = simple.Name
	pathTextMapping.Store = true
	docMapping.AddFieldMappingsAt("path", pathTextMapping)

	// --- Keyword fields ---

	for _, field := range []string{"type", "id", "project_id", "image_id", "status", "source"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// Exact path for subtree prefix filters.
	pathKeyMapping := bleve.NewTextFieldMapping()
	pathKeyMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("path_exact", pathKeyMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	tagsFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	labelsFieldMapping := bleve.NewTextFieldMapping()
	labelsFieldMapping.Analyzer = keyword.Name
	labelsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("labels", labelsFieldMapping)

	// --- Numeric fields ---

	for _, field := range []string{"confidence", "usage_count", "created_at", "updated_at"} {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
