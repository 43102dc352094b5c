// Package relay provides Relay-style cursor pagination over offset queries
package relay

import (
	"encoding/base64"
	"strconv"
	"strings"

	"seasoncast/pkg/errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	cursorPrefix    = "cursor:"
)

// PageInfo represents pagination information in the Relay connection shape
type PageInfo struct {
	HasNextPage     bool    `json:"has_next_page"`
	HasPreviousPage bool    `json:"has_previous_page"`
	StartCursor     *string `json:"start_cursor,omitempty"`
	EndCursor       *string `json:"end_cursor,omitempty"`
}

// Edge represents a single edge in a connection
type Edge[T any] struct {
	Node   T      `json:"node"`
	Cursor string `json:"cursor"`
}

// Connection represents a paginated collection in the Relay connection shape
type Connection[T any] struct {
	Edges      []Edge[T] `json:"edges"`
	PageInfo   PageInfo  `json:"page_info"`
	TotalCount int       `json:"total_count"`
}

// Nodes returns the items of the page in order
func (c *Connection[T]) Nodes() []T {
	out := make([]T, len(c.Edges))
	for i, e := range c.Edges {
		out[i] = e.Node
	}
	return out
}

// PaginationParams represents the pagination parameters
type PaginationParams struct {
	First  *int
	After  *string
	Last   *int
	Before *string
}

// Validate validates the pagination parameters. A page is either forward
// (first, after) or backward (last, before); mixing directions is rejected.
func (p PaginationParams) Validate() error {
	if p.First != nil && p.Last != nil {
		return errors.NewValidationError("first", "cannot be combined with last", *p.First)
	}
	if p.After != nil && p.Before != nil {
		return errors.NewValidationError("after", "cannot be combined with before", *p.After)
	}
	if p.Last != nil && p.After != nil {
		return errors.NewValidationError("after", "cannot be combined with last", *p.After)
	}
	if p.First != nil && p.Before != nil {
		return errors.NewValidationError("before", "cannot be combined with first", *p.Before)
	}
	if p.First != nil && (*p.First <= 0 || *p.First > MaxPageSize) {
		return errors.NewValidationError("first", "must be between 1 and "+strconv.Itoa(MaxPageSize), *p.First)
	}
	if p.Last != nil && (*p.Last <= 0 || *p.Last > MaxPageSize) {
		return errors.NewValidationError("last", "must be between 1 and "+strconv.Itoa(MaxPageSize), *p.Last)
	}
	return nil
}

// GetLimit returns the effective page size
func (p PaginationParams) GetLimit() int {
	if p.First != nil {
		return *p.First
	}
	if p.Last != nil {
		return *p.Last
	}
	return DefaultPageSize
}

// IsForward returns true unless only backward arguments were given
func (p PaginationParams) IsForward() bool {
	return p.Last == nil && p.Before == nil
}

// EncodeCursor encodes an offset into an opaque cursor
func EncodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// DecodeCursor decodes a cursor into an offset
func DecodeCursor(cursor string) (int, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil || !strings.HasPrefix(string(decoded), cursorPrefix) {
		return 0, errors.NewValidationError("cursor", "malformed", cursor)
	}

	offset, err := strconv.Atoi(strings.TrimPrefix(string(decoded), cursorPrefix))
	if err != nil || offset < 0 {
		return 0, errors.NewValidationError("cursor", "malformed", cursor)
	}
	return offset, nil
}

// CalculateOffsetLimit converts the pagination parameters into an offset
// and limit for a query over totalCount rows
func CalculateOffsetLimit(params PaginationParams, totalCount int) (offset, limit int, err error) {
	if err := params.Validate(); err != nil {
		return 0, 0, err
	}

	limit = params.GetLimit()

	if params.After != nil {
		after, err := DecodeCursor(*params.After)
		if err != nil {
			return 0, 0, err
		}
		return after + 1, limit, nil
	}

	end := totalCount
	if params.Before != nil {
		before, err := DecodeCursor(*params.Before)
		if err != nil {
			return 0, 0, err
		}
		end = min(before, totalCount)
	}

	if params.IsForward() {
		return 0, limit, nil
	}

	offset = max(end-limit, 0)
	return offset, end - offset, nil
}

// NewConnection creates a connection from one page of items that starts at startOffset
func NewConnection[T any](items []T, totalCount int, startOffset int) *Connection[T] {
	edges := make([]Edge[T], len(items))
	for i, item := range items {
		edges[i] = Edge[T]{
			Node:   item,
			Cursor: EncodeCursor(startOffset + i),
		}
	}

	pageInfo := PageInfo{
		HasPreviousPage: startOffset > 0,
		HasNextPage:     startOffset+len(items) < totalCount,
	}
	if len(edges) > 0 {
		startCursor := edges[0].Cursor
		endCursor := edges[len(edges)-1].Cursor
		pageInfo.StartCursor = &startCursor
		pageInfo.EndCursor = &endCursor
	}

	return &Connection[T]{
		Edges:      edges,
		PageInfo:   pageInfo,
		TotalCount: totalCount,
	}
}
