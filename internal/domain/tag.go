package domain

import "strings"

// PathSeparator joins ancestor names in a tag's materialized path.
const PathSeparator = "/"

// Tag is a node in the tag forest.
// Tags form a hierarchy: Animal -> Mammal -> Cat, stored as Path "Animal/Mammal/Cat".
type Tag struct {
	Base
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color,omitempty"`    // #rrggbb
	UsageCount  int    `json:"usageCount"`         // times referenced by new annotations
	ParentID    string `json:"parentId,omitempty"` // empty for roots
	Path        string `json:"path"`               // materialized path, root: Name
	Depth       int    `json:"depth"`              // 0=root, 1=child, 2=grandchild
}

// IsRoot returns true if this tag has no parent.
func (t *Tag) IsRoot() bool {
	return t.ParentID == ""
}

// BuildPath constructs the materialized path from the parent's path.
func (t *Tag) BuildPath(parentPath string) string {
	if parentPath == "" {
		return t.Name
	}
	return parentPath + PathSeparator + t.Name
}

// DescendantPrefix is the path prefix shared by every descendant.
func (t *Tag) DescendantPrefix() string {
	return t.Path + PathSeparator
}

// DepthOf returns the depth implied by a materialized path.
func DepthOf(path string) int {
	return strings.Count(path, PathSeparator)
}
