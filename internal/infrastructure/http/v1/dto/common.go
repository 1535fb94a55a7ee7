// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/domain"
)

// PaginationRequest contains pagination parameters. Zero values take the
// service defaults.
type PaginationRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"pageSize" binding:"omitempty,min=1,max=500"`
}

// ToDomain converts to domain.Pagination.
func (p PaginationRequest) ToDomain() domain.Pagination {
	return domain.Pagination{Page: p.Page, PageSize: p.PageSize}
}

// DateRange holds RFC 3339 bounds, both inclusive.
type DateRange struct {
	DateFrom *time.Time `form:"dateFrom" time_format:"2006-01-02T15:04:05Z07:00"`
	DateTo   *time.Time `form:"dateTo" time_format:"2006-01-02T15:04:05Z07:00"`
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ParseOptionalID parses an optional id query value, naming field on error.
func ParseOptionalID(field, raw string) (*id.ID, error) {
	v, err := id.ParseOptional(raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid id").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return v, nil
}
