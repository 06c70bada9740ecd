package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps Offset from overflowing for any page size.
	MaxPage = math.MaxInt / MaxPageSize
)

// Params holds page-based pagination parameters extracted from a request.
// Page is 1-based.
type Params struct {
	Page     int
	PageSize int
}

// New normalizes page and pageSize. Pages are clamped to [1, MaxPage], a
// non-positive size becomes DefaultPageSize and sizes above MaxPageSize are
// capped.
func New(page, pageSize int) Params {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Params{Page: page, PageSize: pageSize}
}

// FromContext extracts pagination parameters from the "page" and
// "per_page" query parameters.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("per_page"))
	return New(page, size)
}

// Offset returns the number of records to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit returns the maximum number of records on the page.
func (p Params) Limit() int {
	return p.PageSize
}

// Page is one page of results together with the total record count.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func NewPage[T any](items []T, total int, p Params) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}

// TotalPages returns the number of pages needed for Total records.
func (pg *Page[T]) TotalPages() int {
	if pg.Total == 0 || pg.PageSize == 0 {
		return 0
	}
	return (pg.Total + pg.PageSize - 1) / pg.PageSize
}

// HasNext returns true if there are more results after the current page.
func (pg *Page[T]) HasNext() bool {
	return pg.Page*pg.PageSize < pg.Total
}

// HasPrevious returns true if there are results before the current page.
func (pg *Page[T]) HasPrevious() bool {
	return pg.Page > 1
}

func (pg *Page[T]) NextPage() int {
	return pg.Page + 1
}

// PreviousPage returns the previous page number, never below 1.
func (pg *Page[T]) PreviousPage() int {
	if pg.Page <= 1 {
		return 1
	}
	return pg.Page - 1
}
