// Package session assigns every visitor a stable id carried in a cookie. The cart is keyed by it.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CookieName = "nolmart_session"
	ctxKey     = "session_id"
	maxAge     = 365 * 24 * time.Hour
)

func Middleware(secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if cookie, err := c.Cookie(CookieName); err == nil {
				if _, perr := uuid.Parse(cookie.Value); perr == nil {
					id = cookie.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     CookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(ctxKey, id)
			return next(c)
		}
	}
}

func ID(c echo.Context) string {
	id, _ := c.Get(ctxKey).(string)
	return id
}
