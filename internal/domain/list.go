// Package domain provides types shared by the domain services.
package domain

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize clamps page and page size to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
}

// Paginate returns the page of items selected by p.
func Paginate[T any](items []T, p Pagination) []T {
	n := p.Normalize()
	start := n.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + n.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
