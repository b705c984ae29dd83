package indicator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandlerCreateIndicator(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()

	body := `{"name":"ANC coverage","numerator":"#{deA}","denominator":"#{deB}","factor":100}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.CreateIndicator(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandlerCreateIndicator_Invalid(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()

	body := `{"name":"ANC","numerator":"#{ghost}","denominator":"#{deB}"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.CreateIndicator(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandlerGetIndicator_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("00000000-0000-0000-0000-000000000001")
	err := h.GetIndicator(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandlerEvaluateIndicator(t *testing.T) {
	svc, _ := newTestService(t)
	ind := &Indicator{Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 100}
	if err := svc.CreateIndicator(context.Background(), ind); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"period":"202601","values":{"deA":3,"deB":4}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ind.ID.String())
	if err := h.EvaluateIndicator(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["value"] != float64(75) || body["numerator"] != float64(3) {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHandlerExportBatch(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.CreateIndicator(context.Background(), &Indicator{Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB}"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"period":"202601","values":{"deA":1,"deB":2}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.ExportBatch(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	// xlsx files are zip archives.
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("expected a zip payload")
	}
}
