package loggingmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Skotchmaster/nolmart/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	base := logging.FromZap(zap.New(core))

	e := echo.New()
	e.Use(RequestLogger(base))
	e.GET("/api/products/:id", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside handler")
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/products/shirt", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))

	logs := observed.TakeAll()
	require.Len(t, logs, 2)
	assert.Equal(t, "inside handler", logs[0].Message)
	assert.Equal(t, "req-42", logs[0].ContextMap()["request_id"])
	assert.Equal(t, "/api/products/:id", logs[1].ContextMap()["path"])
	assert.Equal(t, zapcore.InfoLevel, logs[1].Level)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	logs = observed.FilterMessage("request completed").TakeAll()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	assert.EqualValues(t, 404, logs[0].ContextMap()["status"])
}
