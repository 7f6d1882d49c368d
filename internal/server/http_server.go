package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	echoapi "github.com/skygenesisenterprise/aether-identity/api/echo"
	"github.com/skygenesisenterprise/aether-identity/config"
	"github.com/skygenesisenterprise/aether-identity/log"
)

// NewHTTPServer builds the echo router with recovery, request logging,
// and tracing middleware, registers the API routes, and wraps it in an
// http.Server with sane timeouts.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, api *echoapi.API) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(cfg.OtelServiceName))
	e.Use(requestLogger(appLogger))

	api.RegisterRoutes(e)

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// requestLogger logs one line per request through the application logger
// so every entry carries trace context.
func requestLogger(appLogger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			fields := map[string]interface{}{
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"user_agent": c.Request().UserAgent(),
			}
			if err != nil {
				appLogger.Error(c.Request().Context(), "HTTP request failed", err, fields)
				return err
			}
			appLogger.Info(c.Request().Context(), "HTTP request", fields)
			return nil
		}
	}
}
