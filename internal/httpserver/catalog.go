package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/nolmart/internal/catalog"
	"github.com/Skotchmaster/nolmart/internal/logging"
	"github.com/Skotchmaster/nolmart/internal/models"
	"github.com/Skotchmaster/nolmart/internal/util"
)

const defaultLatest = 8

type CatalogHTTP struct {
	Cache *catalog.Cache
}

type categoryView struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

// ensure loads the catalog on first use. It reports false after writing the degraded response.
func (h *CatalogHTTP) ensure(c echo.Context, handler string) (bool, error) {
	ctx := c.Request().Context()
	if _, err := h.Cache.Load(ctx); err != nil {
		logging.FromContext(ctx).Warn(handler+"_degraded", "status", 200, "reason", "catalog unavailable", "error", err)
		return false, c.JSON(http.StatusOK, map[string]any{
			"data": []models.Product{},
			"meta": map[string]any{"error": true, "message": "Products could not be loaded. Please try again later."},
		})
	}
	return true, nil
}

func (h *CatalogHTTP) Ready(c echo.Context) error {
	if !h.Cache.Loaded() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}

func (h *CatalogHTTP) ListProducts(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "catalog.list_products")
	if ok, err := h.ensure(c, "list_products"); !ok {
		return err
	}

	category, subcategory := c.QueryParam("category"), c.QueryParam("subcategory")
	items := h.Cache.FilterByCategory(category, subcategory)
	total := len(items)

	meta := map[string]any{
		"error":       false,
		"total":       total,
		"category":    category,
		"subcategory": subcategory,
	}

	if limit := util.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 {
		_, hi := util.Window(total, 0, limit)
		items = items[:hi]
	} else if c.QueryParam("page") != "" {
		page := util.ParseIntDefault(c.QueryParam("page"), 1)
		offset, size := util.Calculate(page, util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize))
		lo, hi := util.Window(total, offset, size)
		items = items[lo:hi]
		meta["page"] = max(page, 1)
		meta["size"] = size
		meta["has_prev"] = offset > 0
		meta["has_next"] = hi < total
	}

	l.Debug("list_products_success", "count", len(items))
	return c.JSON(http.StatusOK, map[string]any{"data": items, "meta": meta})
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "catalog.get_product")
	if ok, err := h.ensure(c, "get_product"); !ok {
		return err
	}

	p, found := h.Cache.Product(c.Param("id"))
	if !found {
		l.Warn("get_product_failed", "status", 404, "reason", "product not found", "id", c.Param("id"))
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) Related(c echo.Context) error {
	if ok, err := h.ensure(c, "related_products"); !ok {
		return err
	}

	id := c.Param("id")
	if _, found := h.Cache.Product(id); !found {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	limit := util.ParseIntDefault(c.QueryParam("limit"), catalog.DefaultRelatedLimit)
	return c.JSON(http.StatusOK, map[string]any{"data": h.Cache.Related(id, limit)})
}

func (h *CatalogHTTP) Latest(c echo.Context) error {
	if ok, err := h.ensure(c, "latest_products"); !ok {
		return err
	}
	limit := util.ParseIntDefault(c.QueryParam("limit"), defaultLatest)
	return c.JSON(http.StatusOK, map[string]any{"data": h.Cache.Latest(limit)})
}

func (h *CatalogHTTP) Categories(c echo.Context) error {
	if ok, err := h.ensure(c, "categories"); !ok {
		return err
	}

	out := []categoryView{}
	for _, name := range h.Cache.Categories() {
		out = append(out, categoryView{Name: name, Subcategories: h.Cache.Subcategories(name)})
	}
	return c.JSON(http.StatusOK, map[string]any{"data": out})
}

func (h *CatalogHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.search")

	_, err := h.Cache.Load(ctx)
	if err != nil {
		l.Warn("search_degraded", "status", 200, "reason", "catalog unavailable", "error", err)
	}

	res := h.Cache.Search(c.QueryParam("q"))
	l.Debug("search_success", "state", res.State, "count", len(res.Products))
	return c.JSON(http.StatusOK, map[string]any{"data": res, "meta": map[string]any{"error": err != nil}})
}
