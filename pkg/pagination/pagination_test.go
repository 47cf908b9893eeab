package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContextDefaults(t *testing.T) {
	p := paramsFor(t, "")
	if p.Page != 1 || p.PerPage != DefaultPerPage {
		t.Errorf("params = %+v, want page 1 per_page %d", p, DefaultPerPage)
	}
}

func TestFromContextClampsPerPage(t *testing.T) {
	p := paramsFor(t, "page=3&per_page=500")
	if p.PerPage != MaxPerPage {
		t.Errorf("per_page = %d, want clamped to %d", p.PerPage, MaxPerPage)
	}
	if p.Offset() != 2*MaxPerPage {
		t.Errorf("offset = %d, want %d", p.Offset(), 2*MaxPerPage)
	}
}

func TestFromContextRejectsGarbage(t *testing.T) {
	p := paramsFor(t, "page=-2&per_page=abc")
	if p.Page != 1 || p.PerPage != DefaultPerPage {
		t.Errorf("params = %+v, want defaults for invalid input", p)
	}
}

func TestNewMeta(t *testing.T) {
	cases := []struct {
		total    int
		perPage  int
		lastPage int
	}{
		{0, 15, 1},
		{15, 15, 1},
		{16, 15, 2},
		{100, 15, 7},
	}
	for _, tc := range cases {
		m := NewMeta(Params{Page: 1, PerPage: tc.perPage}, tc.total)
		if m.LastPage != tc.lastPage {
			t.Errorf("total %d per_page %d: last_page = %d, want %d",
				tc.total, tc.perPage, m.LastPage, tc.lastPage)
		}
	}
}
