package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/nolmart/internal/middleware/auth"
	"github.com/Skotchmaster/nolmart/internal/middleware/csrf"
	"github.com/Skotchmaster/nolmart/internal/middleware/session"
)

type Deps struct {
	Catalog  *CatalogHTTP
	Cart     *CartHTTP
	Checkout *CheckoutHTTP
	// Admin is nil when the catalog is not backed by the product store.
	Admin *AdminHTTP

	JWTSecret     []byte
	MediaDir      string
	MediaURL      string
	SecureCookies bool
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.Catalog.Ready)

	api := e.Group("/api")

	products := api.Group("/products")
	products.GET("", d.Catalog.ListProducts)
	products.GET("/latest", d.Catalog.Latest)
	products.GET("/:id", d.Catalog.GetProduct)
	products.GET("/:id/related", d.Catalog.Related)
	products.GET("/:id/buy-now", d.Checkout.BuyNow)
	api.GET("/categories", d.Catalog.Categories)
	api.GET("/search", d.Catalog.Search)

	visitor := api.Group("", session.Middleware(d.SecureCookies))
	visitor.GET("/cart", d.Cart.GetCart)
	visitor.DELETE("/cart", d.Cart.Clear)
	visitor.GET("/cart/events", d.Cart.Events)
	visitor.POST("/cart/items", d.Cart.AddItem)
	visitor.PATCH("/cart/items/:id", d.Cart.UpdateItem)
	visitor.DELETE("/cart/items/:id", d.Cart.RemoveItem)
	visitor.POST("/checkout", d.Checkout.Checkout)
	visitor.POST("/checkout/confirm", d.Checkout.Confirm)

	if d.MediaDir != "" {
		e.Static(d.MediaURL, d.MediaDir)
	}

	if d.Admin == nil {
		return
	}

	admin := api.Group("/admin")
	loginLimiter := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(1),
		Burst:     5,
		ExpiresIn: 3 * time.Minute,
	})
	admin.POST("/login", d.Admin.Login, echomw.RateLimiter(loginLimiter))
	admin.POST("/logout", d.Admin.Logout)

	protected := admin.Group("", auth.RequireAdmin(d.JWTSecret), csrf.Middleware(csrf.Config{Secure: d.SecureCookies}))
	protected.GET("/products", d.Admin.ListProducts)
	protected.GET("/products/:id", d.Admin.GetProduct)
	protected.POST("/products", d.Admin.CreateProduct)
	protected.PATCH("/products/:id", d.Admin.PatchProduct)
	protected.DELETE("/products/:id", d.Admin.DeleteProduct)
	protected.POST("/uploads", d.Admin.Upload, echomw.BodyLimit("26M"))
}
