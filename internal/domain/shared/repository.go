package shared

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a 1-based page selector
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to valid bounds
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the page
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Page is a page of results
type Page[T any] struct {
	Data        []T   `json:"data"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	HasMore     bool  `json:"has_more"`
}

// NewPage creates a page from a slice and the total row count
func NewPage[T any](data []T, total int64, req PageRequest) Page[T] {
	req = req.Normalize()
	if data == nil {
		data = make([]T, 0)
	}
	totalPages := int(math.Ceil(float64(total) / float64(req.Limit)))
	return Page[T]{
		Data:        data,
		CurrentPage: req.Page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasMore:     req.Page < totalPages,
	}
}

// MapPage converts the items of a page
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Data))
	for i, item := range p.Data {
		out[i] = fn(item)
	}
	return Page[U]{
		Data:        out,
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		TotalCount:  p.TotalCount,
		HasMore:     p.HasMore,
	}
}
