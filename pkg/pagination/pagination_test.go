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
	req := httptest.NewRequest(http.MethodGet, "/api/v1/indicators"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", MaxLimit, 0},
		{"?limit=-3&offset=-1", DefaultLimit, 0},
		{"?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, c := range cases {
		p := paramsFor(t, c.query)
		if p.Limit != c.limit || p.Offset != c.offset {
			t.Errorf("%q: expected %d/%d, got %d/%d", c.query, c.limit, c.offset, p.Limit, p.Offset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a"}, 25, Params{Limit: 10, Offset: 10})
	if !r.HasMore {
		t.Error("expected more results")
	}
	r = NewResponse([]string{"a"}, 25, Params{Limit: 10, Offset: 20})
	if r.HasMore {
		t.Error("expected last page")
	}
}

func TestWithLinks(t *testing.T) {
	r := NewResponse(nil, 25, Params{Limit: 10, Offset: 5}).WithLinks("/api/v1/indicators")
	if r.Links.Self != "/api/v1/indicators?limit=10&offset=5" {
		t.Errorf("unexpected self link %s", r.Links.Self)
	}
	if r.Links.Next != "/api/v1/indicators?limit=10&offset=15" {
		t.Errorf("unexpected next link %s", r.Links.Next)
	}
	if r.Links.Previous != "/api/v1/indicators?limit=10&offset=0" {
		t.Errorf("unexpected previous link %s", r.Links.Previous)
	}

	first := NewResponse(nil, 3, Params{Limit: 10}).WithLinks("/x")
	if first.Links.Next != "" || first.Links.Previous != "" {
		t.Errorf("expected a single page, got %+v", first.Links)
	}
}
