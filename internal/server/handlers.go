package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"shelf-meta-srv/internal/barcode"
	"shelf-meta-srv/internal/catalog"
	"shelf-meta-srv/internal/models"
)

type Handler struct {
	metadata MetadataService
	barcodes BarcodeService
	logger   *zap.Logger
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/metadata", h.PreviewMetadata)
	g.GET("/items/:id/metadata", h.GetItemMetadata)
	g.POST("/items/:id/metadata", h.ResolveItemMetadata)
	g.DELETE("/items/:id/metadata", h.DeleteItemMetadata)
	g.GET("/barcode", h.ResolveBarcode)
}

// ResolveBody is the payload of POST /api/items/:id/metadata. LookupQuery,
// when set, is searched instead of Name.
type ResolveBody struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Barcode     string `json:"barcode"`
	Refresh     bool   `json:"refresh"`
	LookupQuery string `json:"lookupQuery"`
}

// persistFailure carries a resolved result that could not be saved.
type persistFailure struct {
	Message string `json:"message"`
	Result  any    `json:"result"`
}

// PreviewMetadata answers GET /api/metadata?name=&type=&barcode= with the
// best catalog match, or null.
func (h *Handler) PreviewMetadata(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	code := strings.TrimSpace(c.QueryParam("barcode"))
	if name == "" && code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name or barcode is required")
	}
	typ, err := models.ParseType(c.QueryParam("type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec := h.metadata.Preview(c.Request().Context(), name, typ, code)
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetItemMetadata(c echo.Context) error {
	rec, err := h.metadata.Stored(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if rec == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no metadata for item")
	}
	return c.JSON(http.StatusOK, rec)
}

// ResolveItemMetadata resolves and stores the item's record. 204 means no
// catalog had a match; any previous record is kept.
func (h *Handler) ResolveItemMetadata(c echo.Context) error {
	var body ResolveBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	typ, err := models.ParseType(body.Type)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	name := strings.TrimSpace(body.Name)
	if q := strings.TrimSpace(body.LookupQuery); q != "" {
		name = q
	}
	if name == "" && strings.TrimSpace(body.Barcode) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name or barcode is required")
	}

	rec, err := h.metadata.ResolveAndStore(c.Request().Context(), catalog.ResolveRequest{
		ItemID:       c.Param("id"),
		Name:         name,
		Type:         typ,
		Barcode:      body.Barcode,
		ForceRefresh: body.Refresh,
	})
	switch {
	case errors.Is(err, models.ErrPersist):
		h.logger.Error("resolved metadata was not saved", zap.String("item_id", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, persistFailure{Message: err.Error(), Result: rec})
	case err != nil:
		return err
	case rec == nil:
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteItemMetadata(c echo.Context) error {
	deleted, err := h.metadata.Forget(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "no metadata for item")
	}
	return c.NoContent(http.StatusNoContent)
}

// ResolveBarcode answers GET /api/barcode?q= with the product name behind
// a barcode.
func (h *Handler) ResolveBarcode(c echo.Context) error {
	res, err := h.barcodes.ResolveName(c.Request().Context(), c.QueryParam("q"))
	switch {
	case errors.Is(err, barcode.ErrEmptyBarcode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotRecognized):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrPersist):
		h.logger.Error("resolved barcode was not cached", zap.String("barcode", c.QueryParam("q")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, persistFailure{Message: err.Error(), Result: res})
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, res)
}
