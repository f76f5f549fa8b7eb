package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/nolmart/internal/catalog"
	"github.com/Skotchmaster/nolmart/internal/checkout"
	"github.com/Skotchmaster/nolmart/internal/logging"
)

type CheckoutHTTP struct {
	Carts   *CartHTTP
	Catalog *catalog.Cache
	Handoff *checkout.Handoff
}

type checkoutView struct {
	checkout.Link
	Total string `json:"total"`
}

func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "checkout.checkout")

	s, err := h.Carts.store(c)
	if err != nil {
		return err
	}

	link, err := h.Handoff.Order(s.Lines())
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			l.Warn("checkout_failed", "status", 400, "reason", "empty cart")
			return echo.NewHTTPError(http.StatusBadRequest, "Your cart is empty. Please add items before checking out.")
		}
		l.Error("checkout_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot build order message")
	}

	l.Info("checkout_success", "lines", s.ItemCount(), "total", s.TotalPrice().String())
	return c.JSON(http.StatusOK, checkoutView{Link: link, Total: h.Handoff.FormatPrice(s.TotalPrice())})
}

// Confirm clears the cart once the visitor has been handed off to the chat.
func (h *CheckoutHTTP) Confirm(c echo.Context) error {
	s, err := h.Carts.store(c)
	if err != nil {
		return err
	}
	if err := s.Clear(c.Request().Context()); err != nil {
		return mutationError(c, "checkout_confirm", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CheckoutHTTP) BuyNow(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.buy_now")

	if _, err := h.Catalog.Load(ctx); err != nil {
		l.Warn("buy_now_failed", "status", 503, "reason", "catalog unavailable", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "catalog unavailable")
	}
	p, ok := h.Catalog.Product(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	link, err := h.Handoff.BuyNow(p)
	if err != nil {
		l.Error("buy_now_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot build order message")
	}
	return c.JSON(http.StatusOK, link)
}
