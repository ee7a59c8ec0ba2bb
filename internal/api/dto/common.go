// Package dto provides request and response types shared across the Satin API.
// These types are used by huma to generate OpenAPI documentation and perform validation.
package dto

import "github.com/ilbumi/satin/internal/store"

// ListResponse is a generic cursor paginated list response.
type ListResponse[T any] struct {
	Items      []T    `json:"items" doc:"List of items"`
	Total      int    `json:"total" doc:"Total count across all pages"`
	NextCursor string `json:"nextCursor,omitempty" doc:"Cursor for the next page, empty on the last page"`
	HasMore    bool   `json:"hasMore" doc:"Whether more pages exist"`
}

// NewListResponse converts a store page, mapping every item with fn.
func NewListResponse[S, T any](page *store.PaginatedResult[S], fn func(S) T) ListResponse[T] {
	items := make([]T, len(page.Items))
	for i, it := range page.Items {
		items[i] = fn(it)
	}
	return ListResponse[T]{
		Items:      items,
		Total:      page.Total,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
}

// PaginationParams defines common pagination query parameters.
type PaginationParams struct {
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Items per page"`
	Cursor string `query:"cursor" doc:"Opaque cursor from a previous page"`
}

// IDParam is a path parameter for resource IDs.
type IDParam struct {
	ID string `path:"id" doc:"Resource identifier (24 hex characters)"`
}

// MessageResponse is a simple success message response.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps a message response for huma.
type MessageOutput struct {
	Body MessageResponse
}

// Message builds a MessageOutput.
func Message(msg string) *MessageOutput {
	return &MessageOutput{Body: MessageResponse{Message: msg}}
}
