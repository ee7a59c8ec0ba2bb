// Package search provides full-text search over projects, images, tags and
// active annotations using Bleve, with keyword filters and facets.
package search

import (
	"github.com/ilbumi/satin/internal/domain"
)

// DocType represents the type of document in the unified index.
type DocType string

// Document types for the search index.
const (
	DocTypeProject    DocType = "project"
	DocTypeImage      DocType = "image"
	DocTypeTag        DocType = "tag"
	DocTypeAnnotation DocType = "annotation"
)

// SearchDocument is the unified document structure for the Bleve index.
// All searchable entities are indexed as SearchDocuments with type discrimination.
type SearchDocument struct {
	ID   string  `json:"id"`
	Type DocType `json:"type"`

	// Project: name, Image: filename, Tag: name, Annotation: empty.
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Path      string   `json:"path,omitempty"` // tags only
	ProjectID string   `json:"project_id,omitempty"`
	ImageID   string   `json:"image_id,omitempty"`
	Status    string   `json:"status,omitempty"`
	Source    string   `json:"source,omitempty"`
	Tags      []string `json:"tags,omitempty"`   // annotation tag ids
	Labels    []string `json:"labels,omitempty"` // project labels

	Confidence *float64 `json:"confidence,omitempty"`
	UsageCount int      `json:"usage_count,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"type":       string(d.Type),
		"name":       d.Name,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}

	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Path != "" {
		m["path"] = d.Path
		m["path_exact"] = d.Path
	}
	if d.ProjectID != "" {
		m["project_id"] = d.ProjectID
	}
	if d.ImageID != "" {
		m["image_id"] = d.ImageID
	}
	if d.Status != "" {
		m["status"] = d.Status
	}
	if d.Source != "" {
		m["source"] = d.Source
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if len(d.Labels) > 0 {
		m["labels"] = d.Labels
	}
	if d.Confidence != nil {
		m["confidence"] = *d.Confidence
	}
	if d.UsageCount > 0 {
		m["usage_count"] = d.UsageCount
	}

	return m
}

// ProjectToSearchDocument converts a domain Project to a SearchDocument.
func ProjectToSearchDocument(p *domain.Project) *SearchDocument {
	return &SearchDocument{
		ID:          p.ID,
		Type:        DocTypeProject,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		Labels:      p.Labels,
		CreatedAt:   p.CreatedAt.UnixMilli(),
		UpdatedAt:   p.UpdatedAt.UnixMilli(),
	}
}

// ImageToSearchDocument converts a domain Image to a SearchDocument.
func ImageToSearchDocument(img *domain.Image) *SearchDocument {
	return &SearchDocument{
		ID:        img.ID,
		Type:      DocTypeImage,
		Name:      img.Filename,
		ProjectID: img.ProjectID,
		Status:    string(img.Status),
		CreatedAt: img.CreatedAt.UnixMilli(),
		UpdatedAt: img.UpdatedAt.UnixMilli(),
	}
}

// TagToSearchDocument converts a domain Tag to a SearchDocument.
func TagToSearchDocument(t *domain.Tag) *SearchDocument {
	return &SearchDocument{
		ID:          t.ID,
		Type:        DocTypeTag,
		Name:        t.Name,
		Description: t.Description,
		Path:        t.Path,
		UsageCount:  t.UsageCount,
		CreatedAt:   t.CreatedAt.UnixMilli(),
		UpdatedAt:   t.UpdatedAt.UnixMilli(),
	}
}

// AnnotationToSearchDocument converts an annotation version to a
// SearchDocument. Only the active version of a lineage should be indexed.
func AnnotationToSearchDocument(a *domain.Annotation) *SearchDocument {
	return &SearchDocument{
		ID:          a.ID,
		Type:        DocTypeAnnotation,
		Description: a.Description,
		ImageID:     a.ImageID,
		Source:      a.Source,
		Tags:        a.Tags,
		Confidence:  a.Confidence,
		CreatedAt:   a.CreatedAt.UnixMilli(),
		UpdatedAt:   a.UpdatedAt.UnixMilli(),
	}
}
