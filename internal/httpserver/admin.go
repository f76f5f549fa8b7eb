package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/nolmart/internal/logging"
	"github.com/Skotchmaster/nolmart/internal/service"
	"github.com/Skotchmaster/nolmart/internal/tokens"
	"github.com/Skotchmaster/nolmart/internal/transport"
	"github.com/Skotchmaster/nolmart/internal/util"
)

type AdminHTTP struct {
	Svc   *service.AdminService
	Media *service.Media
}

func (h *AdminHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot log in")
	}

	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, res.AccessToken, "/", res.AccessExp))
	l.Info("login_success")
	return c.JSON(http.StatusOK, map[string]any{
		"accessToken": res.AccessToken,
		"expiresAt":   res.AccessExp,
	})
}

func (h *AdminHTTP) Logout(c echo.Context) error {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_products")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.ListProducts(ctx, offset, limit)
	if err != nil {
		l.Error("list_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        max(page, 1),
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    offset > 0,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *AdminHTTP) GetProduct(c echo.Context) error {
	p, err := h.Svc.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return adminError(c, "get_product", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AdminHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_product")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		return adminError(c, "create_product", err)
	}
	l.Info("create_product_success", "product_id", created.ID)
	return c.JSON(http.StatusCreated, created)
}

func (h *AdminHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.patch_product")

	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("patch_product_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	updated, err := h.Svc.PatchProduct(ctx, c.Param("id"), req)
	if err != nil {
		return adminError(c, "patch_product", err)
	}
	l.Info("patch_product_success", "product_id", updated.ID)
	return c.JSON(http.StatusOK, updated)
}

func (h *AdminHTTP) DeleteProduct(c echo.Context) error {
	if err := h.Svc.DeleteProduct(c.Request().Context(), c.Param("id")); err != nil {
		return adminError(c, "delete_product", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.upload")

	fh, err := c.FormFile("file")
	if err != nil {
		l.Warn("upload_failed", "status", 400, "reason", "missing file", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "missing file")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
	}
	defer f.Close()

	url, err := h.Media.Save(ctx, fh.Filename, f)
	if err != nil {
		return adminError(c, "upload", err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"url": url})
}

func adminError(c echo.Context, op string, err error) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin."+op)
	switch {
	case errors.Is(err, service.ErrNotFound):
		l.Warn(op+"_failed", "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrValidation):
		l.Warn(op+"_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		l.Error(op+"_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
