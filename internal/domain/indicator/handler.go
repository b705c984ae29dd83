package indicator

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/formula-engine/internal/platform/auth"
	"github.com/ehr/formula-engine/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// BatchRequest selects indicators for a batch evaluation. No ids means all.
type BatchRequest struct {
	DataRequest
	IDs []uuid.UUID `json:"ids,omitempty"`
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/indicators", auth.RequireRole(auth.RoleAnalyst, auth.RoleMetadataEditor))
	read.GET("", h.ListIndicators)
	read.GET("/:id", h.GetIndicator)
	read.POST("/:id/evaluate", h.EvaluateIndicator)
	read.POST("/evaluate", h.EvaluateBatch)
	read.POST("/evaluate.xlsx", h.ExportBatch)

	write := api.Group("/indicators", auth.RequireRole(auth.RoleMetadataEditor))
	write.POST("", h.CreateIndicator)
	write.PUT("/:id", h.UpdateIndicator)
	write.DELETE("/:id", h.DeleteIndicator)
}

func (h *Handler) CreateIndicator(c echo.Context) error {
	var ind Indicator
	if err := c.Bind(&ind); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateIndicator(c.Request().Context(), &ind); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, ind)
}

func (h *Handler) GetIndicator(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ind, err := h.svc.GetIndicator(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ind)
}

func (h *Handler) ListIndicators(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListIndicators(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Indicator{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path))
}

func (h *Handler) UpdateIndicator(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var ind Indicator
	if err := c.Bind(&ind); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ind.ID = id
	if err := h.svc.UpdateIndicator(c.Request().Context(), &ind); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ind)
}

func (h *Handler) DeleteIndicator(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteIndicator(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) EvaluateIndicator(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req DataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Evaluate(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) EvaluateBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	evals, err := h.svc.EvaluateAll(c.Request().Context(), req.IDs, req.DataRequest)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, evals)
}

func (h *Handler) ExportBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request().Context(), &buf, req.IDs, req.DataRequest); err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="indicators.xlsx"`)
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "indicator not found")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
