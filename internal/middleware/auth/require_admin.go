package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/nolmart/internal/tokens"
)

const ctxSubject = "admin_subject"

// RequireAdmin accepts an admin access token from the Authorization header or the accessToken cookie.
func RequireAdmin(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c.Request())
			if raw == "" {
				if cookie, err := c.Cookie(tokens.AccessCookie); err == nil {
					raw = cookie.Value
				}
			}
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}

			claims, err := tokens.AccessClaimsFromToken(raw, secret)
			if err != nil {
				c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
			if claims.Role != tokens.RoleAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}

			c.Set(ctxSubject, claims.Subject)
			return next(c)
		}
	}
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func Subject(c echo.Context) string {
	s, _ := c.Get(ctxSubject).(string)
	return s
}
