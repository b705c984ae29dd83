package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/formula-engine/internal/expression"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	svc, _ := newTestService()
	c, err := LoadCatalog("testdata/catalog.yaml")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if _, err := svc.Import(context.Background(), c); err != nil {
		t.Fatalf("import: %v", err)
	}
	return NewHandler(svc), echo.New()
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestGetObject(t *testing.T) {
	h, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("class", "uid")
	c.SetParamValues("constant", "popShare")

	if err := h.GetObject(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var o Object
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if o.Name != "Population share" || o.Value == nil || *o.Value != 0.25 {
		t.Errorf("unexpected object %+v", o)
	}
}

func TestGetObject_Errors(t *testing.T) {
	h, e := newTestHandler(t)
	cases := []struct {
		class, uid string
		want       int
	}{
		{"constant", "ghost", http.StatusNotFound},
		{"constants", "popShare", http.StatusBadRequest},
	}
	for _, tc := range cases {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("class", "uid")
		c.SetParamValues(tc.class, tc.uid)
		if got := statusOf(t, h.GetObject(c)); got != tc.want {
			t.Errorf("%s/%s: expected %d, got %d", tc.class, tc.uid, tc.want, got)
		}
	}
}

func TestListObjects(t *testing.T) {
	h, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/metadata?class=dataElement&limit=2", nil), rec)

	if err := h.ListObjects(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data    []Object `json:"data"`
		Total   int      `json:"total"`
		HasMore bool     `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || len(body.Data) != 2 || !body.HasMore {
		t.Errorf("unexpected page %+v", body)
	}
}

func TestSearchObjects(t *testing.T) {
	h, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?q=hosp", nil), rec)
	if err := h.SearchObjects(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var matches []Match
	if err := json.Unmarshal(rec.Body.Bytes(), &matches); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(matches) != 1 || matches[0].Object.UID != "ougHosp" {
		t.Errorf("expected Hospitals, got %+v", matches)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if got := statusOf(t, h.SearchObjects(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", got)
	}
}

func TestSaveAndDeleteObject(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"class":"indicator","uid":"indANC","name":"ANC coverage"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.SaveObject(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if _, err := h.svc.GetObject(context.Background(), expression.ClassIndicator, "indANC"); err != nil {
		t.Fatalf("expected the indicator to be stored: %v", err)
	}

	rec = httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("class", "uid")
	c.SetParamValues("indicator", "indANC")
	if err := h.DeleteObject(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestImportCatalog_HJSON(t *testing.T) {
	svc, repo := newTestService()
	h := NewHandler(svc)
	data, err := os.ReadFile("testdata/catalog.hjson")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/?format=hjson", strings.NewReader(string(data))), rec)

	if err := h.ImportCatalog(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"imported":9`) || len(repo.store) != 9 {
		t.Errorf("expected 9 imported, got %s", rec.Body.String())
	}
}

func TestImportCatalog_BadFormat(t *testing.T) {
	h, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/?format=toml", strings.NewReader("x")), httptest.NewRecorder())
	if got := statusOf(t, h.ImportCatalog(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}
