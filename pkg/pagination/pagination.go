package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page    int
	PerPage int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	return Params{Page: page, PerPage: perPage}
}

// Limit returns the SQL LIMIT for the page.
func (p Params) Limit() int { return p.PerPage }

// Offset returns the SQL OFFSET for the page.
func (p Params) Offset() int { return (p.Page - 1) * p.PerPage }

// Meta describes the collection envelope metadata for a page of results.
type Meta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// NewMeta builds collection metadata from the total row count.
func NewMeta(p Params, total int) Meta {
	last := (total + p.PerPage - 1) / p.PerPage
	if last < 1 {
		last = 1
	}
	return Meta{
		CurrentPage: p.Page,
		LastPage:    last,
		PerPage:     p.PerPage,
		Total:       total,
	}
}
