package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Page size bounds.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// PaginationParams contains pagination request parameters.
type PaginationParams struct {
	Limit  int    // Items per page (defaults to 100 with a maximum of 1000)
	Cursor string // Opaque cursor for the next page (empty for the first page)
}

// PaginatedResult contains one page of data and metadata.
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"` // Empty if no more pages
	HasMore    bool   `json:"hasMore"`
	Total      int    `json:"total"`
}

// DefaultPaginationParams returns sensible defaults.
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{Limit: DefaultPageLimit}
}

// Validate clamps the limit into range.
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}

// Offset decodes the cursor into a result offset.
func (p PaginationParams) Offset() (int, error) {
	raw, err := DecodeCursor(p.Cursor)
	if err != nil || raw == "" {
		return 0, err
	}
	n, ok := strings.CutPrefix(raw, "o:")
	if !ok {
		return 0, fmt.Errorf("invalid cursor")
	}
	off, err := strconv.Atoi(n)
	if err != nil || off < 0 {
		return 0, fmt.Errorf("invalid cursor")
	}
	return off, nil
}

// OffsetCursor encodes an offset as an opaque cursor.
func OffsetCursor(offset int) string {
	return EncodeCursor("o:" + strconv.Itoa(offset))
}

// EncodeCursor creates an opaque cursor from a key.
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor decodes a cursor back to a key.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	return string(decoded), nil
}
