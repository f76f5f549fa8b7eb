package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/nolmart/internal/cart"
	"github.com/Skotchmaster/nolmart/internal/catalog"
	"github.com/Skotchmaster/nolmart/internal/logging"
	"github.com/Skotchmaster/nolmart/internal/middleware/session"
	"github.com/Skotchmaster/nolmart/internal/models"
	"github.com/Skotchmaster/nolmart/internal/transport"
)

const (
	cartEvent      = "cartUpdated"
	heartbeatEvery = 25 * time.Second
)

type CartHTTP struct {
	Carts   *cart.Registry
	Catalog *catalog.Cache
}

type cartView struct {
	Lines         []models.CartLine `json:"lines"`
	ItemCount     int               `json:"itemCount"`
	TotalQuantity int               `json:"totalQuantity"`
	TotalPrice    decimal.Decimal   `json:"totalPrice"`
}

func viewOf(s *cart.Store) cartView {
	return cartView{
		Lines:         s.Lines(),
		ItemCount:     s.ItemCount(),
		TotalQuantity: s.TotalQuantity(),
		TotalPrice:    s.TotalPrice(),
	}
}

func (h *CartHTTP) store(c echo.Context) (*cart.Store, error) {
	ctx := c.Request().Context()
	s, err := h.Carts.Get(ctx, session.ID(c))
	if err != nil {
		logging.FromContext(ctx).Error("open_cart_failed", "status", 500, "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot open cart")
	}
	return s, nil
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(s))
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req transport.AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		l.Warn("add_item_failed", "status", 400, "reason", "validation", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if _, err := h.Catalog.Load(ctx); err != nil {
		l.Warn("add_item_failed", "status", 503, "reason", "catalog unavailable", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "catalog unavailable")
	}
	product, ok := h.Catalog.Product(req.ProductID)
	if !ok {
		l.Warn("add_item_failed", "status", 404, "reason", "product not found", "product_id", req.ProductID)
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	s, err := h.store(c)
	if err != nil {
		return err
	}
	if _, err := s.AddItem(ctx, product, req.Quantity); err != nil {
		return mutationError(c, "add_item", err)
	}

	l.Info("add_item_success", "product_id", product.ID, "quantity", req.Quantity)
	return c.JSON(http.StatusOK, viewOf(s))
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	var req transport.UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		l.Warn("update_item_failed", "status", 400, "reason", "validation", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s, err := h.store(c)
	if err != nil {
		return err
	}
	if _, err := s.UpdateQuantity(ctx, c.Param("id"), *req.Quantity); err != nil {
		return mutationError(c, "update_item", err)
	}
	return c.JSON(http.StatusOK, viewOf(s))
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	if _, err := s.RemoveItem(c.Request().Context(), c.Param("id")); err != nil {
		return mutationError(c, "remove_item", err)
	}
	return c.JSON(http.StatusOK, viewOf(s))
}

func (h *CartHTTP) Clear(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	if err := s.Clear(c.Request().Context()); err != nil {
		return mutationError(c, "clear_cart", err)
	}
	return c.JSON(http.StatusOK, viewOf(s))
}

// Events streams a cartUpdated event with the full cart on connect and after every change.
func (h *CartHTTP) Events(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.store(c)
	if err != nil {
		return err
	}

	res := c.Response()
	// the stream outlives the server write timeout
	_ = http.NewResponseController(res.Writer).SetWriteDeadline(time.Time{})
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	changed := make(chan struct{}, 1)
	unsubscribe := s.OnChange(func([]models.CartLine) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := writeEvent(res, cartEvent, viewOf(s)); err != nil {
		return nil
	}

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := writeEvent(res, cartEvent, viewOf(s)); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func mutationError(c echo.Context, op string, err error) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "cart."+op)
	switch {
	case errors.Is(err, cart.ErrInvalidProduct), errors.Is(err, cart.ErrInvalidQuantity):
		l.Warn(op+"_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		l.Error(op+"_failed", "status", 500, "reason", "cannot persist cart", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save cart")
	}
}
