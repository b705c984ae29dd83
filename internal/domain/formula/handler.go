package formula

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/formula-engine/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/formulas", auth.RequireRole(auth.RoleAnalyst, auth.RoleMetadataEditor))
	g.POST("/evaluate", h.Evaluate)
	g.POST("/validate", h.Validate)
	g.POST("/validate/report", h.ValidationReport)
	g.POST("/describe", h.Describe)
	g.POST("/items", h.Items)
}

func (h *Handler) Evaluate(c echo.Context) error {
	var req EvaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.Evaluate(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Validate(c echo.Context) error {
	req, err := bindFormula(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.Validate(c.Request().Context(), req.Formula)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Describe(c echo.Context) error {
	req, err := bindFormula(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.Describe(c.Request().Context(), req.Formula)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Items(c echo.Context) error {
	req, err := bindFormula(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.Items(req.Formula)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ValidationReport(c echo.Context) error {
	var req ReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Formulas) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "formulas are required")
	}
	html, err := h.svc.Report(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.HTMLBlob(http.StatusOK, html)
}

func bindFormula(c echo.Context) (FormulaRequest, error) {
	var req FormulaRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return req, nil
}

func httpError(err error) error {
	if errors.Is(err, ErrInvalidRequest) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
