package domain

import "slices"

// ChangeType tags the mutation that produced an annotation version.
type ChangeType string

// Change types.
const (
	ChangeCreate ChangeType = "CREATE"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Valid reports whether c is a known change type.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeCreate, ChangeUpdate, ChangeDelete:
		return true
	default:
		return false
	}
}

// SourceManual is the default annotation provenance.
const SourceManual = "manual"

// BoundingBox is an axis-aligned rectangle in image pixel space.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Annotation is one immutable entry in an image's version chain.
//
// Every create, update, delete and restore appends a new Annotation with the
// next version number for the image. A lineage is the set of versions sharing
// (ImageID, BoundingBox); its current state is the highest version unless
// that version is a DELETE.
type Annotation struct {
	Base
	ImageID     string      `json:"imageId"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Tags        []string    `json:"tags"`
	Description string      `json:"description"`
	Confidence  *float64    `json:"confidence,omitempty"`
	Source      string      `json:"source"`
	Version     int         `json:"version"`
	ChangeType  ChangeType  `json:"changeType"`
}

// IsDeleted reports whether this version is a soft-delete marker.
func (a *Annotation) IsDeleted() bool {
	return a.ChangeType == ChangeDelete
}

// HasTag reports whether tagID is referenced by the annotation.
func (a *Annotation) HasTag(tagID string) bool {
	return slices.Contains(a.Tags, tagID)
}
