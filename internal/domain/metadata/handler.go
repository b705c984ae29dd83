package metadata

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/formula-engine/internal/expression"
	"github.com/ehr/formula-engine/internal/platform/auth"
	"github.com/ehr/formula-engine/pkg/pagination"
)

const maxCatalogBytes = 10 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/metadata", auth.RequireRole(auth.RoleAnalyst, auth.RoleMetadataEditor))
	read.GET("", h.ListObjects)
	read.GET("/search", h.SearchObjects)
	read.GET("/:class/:uid", h.GetObject)

	write := api.Group("/metadata", auth.RequireRole(auth.RoleMetadataEditor))
	write.POST("", h.SaveObject)
	write.POST("/import", h.ImportCatalog)
	write.DELETE("/:class/:uid", h.DeleteObject)
}

func (h *Handler) ListObjects(c echo.Context) error {
	pg := pagination.FromContext(c)
	class := expression.ObjectClass(c.QueryParam("class"))
	items, total, err := h.svc.ListObjects(c.Request().Context(), class, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if items == nil {
		items = []*Object{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path))
}

func (h *Handler) SearchObjects(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	class, err := optionalClass(c.QueryParam("class"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > pagination.MaxLimit {
		limit = pagination.DefaultLimit
	}

	matches, err := h.svc.Search(c.Request().Context(), q, class, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if matches == nil {
		matches = []Match{}
	}
	return c.JSON(http.StatusOK, matches)
}

func (h *Handler) GetObject(c echo.Context) error {
	class, err := expression.ParseObjectClass(c.Param("class"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.GetObject(c.Request().Context(), class, c.Param("uid"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "metadata object not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) SaveObject(c echo.Context) error {
	var o Object
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SaveObject(c.Request().Context(), &o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteObject(c echo.Context) error {
	class, err := expression.ParseObjectClass(c.Param("class"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err = h.svc.DeleteObject(c.Request().Context(), class, c.Param("uid"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "metadata object not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ImportCatalog stores a YAML or HJSON catalog posted as the raw body.
// ?format= selects the parser and defaults to yaml.
func (h *Handler) ImportCatalog(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = FormatYAML
	}
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCatalogBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	catalog, err := ParseCatalog(data, format)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.Import(c.Request().Context(), catalog)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": n})
}

func optionalClass(s string) (expression.ObjectClass, error) {
	if s == "" {
		return "", nil
	}
	return expression.ParseObjectClass(s)
}
