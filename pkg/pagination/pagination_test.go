package pagination

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.PageSize != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, p.PageSize)
	}
	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&per_page=50", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.PageSize != 50 {
		t.Errorf("expected page size 50, got %d", p.PageSize)
	}
	if p.Offset() != 100 {
		t.Errorf("expected offset 100, got %d", p.Offset())
	}
}

func TestFromContext_MaxPageSize(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?per_page=500", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.PageSize != MaxPageSize {
		t.Errorf("expected page size capped at %d, got %d", MaxPageSize, p.PageSize)
	}
}

func TestFromContext_InvalidPage(t *testing.T) {
	e := echo.New()
	for _, q := range []string{"/?page=-2", "/?page=0", "/?page=abc"} {
		req := httptest.NewRequest(http.MethodGet, q, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		if p := FromContext(c); p.Page != 1 {
			t.Errorf("%s: expected page 1, got %d", q, p.Page)
		}
	}
}

func TestNew_HugePageKeepsOffsetPositive(t *testing.T) {
	for _, page := range []int{461168601842738792, 999999999999999999, math.MaxInt} {
		p := New(page, MaxPageSize)
		if p.Page != MaxPage {
			t.Errorf("page %d: expected clamp to %d, got %d", page, MaxPage, p.Page)
		}
		if p.Offset() < 0 {
			t.Errorf("page %d: negative offset %d", page, p.Offset())
		}
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=461168601842738792&per_page=20", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if off := FromContext(c).Offset(); off < 0 {
		t.Errorf("expected non-negative offset from query, got %d", off)
	}
}

func TestPage_Navigation(t *testing.T) {
	p := New(3, 20)
	pg := NewPage([]int{1, 2, 3, 4, 5}, 45, p)

	if pg.TotalPages() != 3 {
		t.Errorf("expected 3 pages, got %d", pg.TotalPages())
	}
	if pg.HasNext() {
		t.Error("expected no next page on last page")
	}
	if !pg.HasPrevious() {
		t.Error("expected previous page")
	}
	if pg.PreviousPage() != 2 {
		t.Errorf("expected previous page 2, got %d", pg.PreviousPage())
	}

	first := NewPage([]int{}, 45, New(1, 20))
	if !first.HasNext() || first.NextPage() != 2 {
		t.Error("expected first page to have next page 2")
	}
	if first.HasPrevious() {
		t.Error("expected no previous page on first page")
	}
}

func TestNewPage_NilItems(t *testing.T) {
	pg := NewPage[string](nil, 0, New(4, 20))
	if pg.Items == nil {
		t.Fatal("expected non-nil empty items")
	}
	if len(pg.Items) != 0 {
		t.Errorf("expected 0 items, got %d", len(pg.Items))
	}
	if pg.TotalPages() != 0 {
		t.Errorf("expected 0 pages, got %d", pg.TotalPages())
	}
}
