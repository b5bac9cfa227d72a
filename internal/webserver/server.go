// Package webserver hosts the embedded echo HTTP server. Route registration
// goes through the ApiGET/ApiPOST helpers so handler packages never touch the
// echo instance directly.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/wadesk/wadesk/internal/app"
)

// Context keys used to pass application handles to handlers.
const (
	ContextKeyDB     = "wadesk_db"
	ContextKeyAppCtx = "wadesk_appctx"
)

type WebServer struct {
	root   *echo.Echo
	api    *echo.Group
	appCtx app.AppContext
}

var server *WebServer

// Init builds the web server around the application context. Must be called
// before any route registration.
func Init(appCtx app.AppContext) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("webserver: request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextKeyDB, appCtx.DB())
			c.Set(ContextKeyAppCtx, appCtx)
			return next(c)
		}
	})

	server = &WebServer{
		root:   e,
		api:    e.Group("/api"),
		appCtx: appCtx,
	}
	return server
}

// Listen serves until the listener fails or the server is shut down.
func Listen() error {
	cfg := server.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.L().Info("webserver: listening", zap.String("addr", addr))
	err := server.root.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func Shutdown() error {
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.root.Shutdown(ctx)
}

// ApiGET registers a GET handler under /api.
func ApiGET(path string, h echo.HandlerFunc) {
	server.api.GET(path, h)
}

// ApiPOST registers a POST handler under /api.
func ApiPOST(path string, h echo.HandlerFunc) {
	server.api.POST(path, h)
}

// ApiPUT registers a PUT handler under /api.
func ApiPUT(path string, h echo.HandlerFunc) {
	server.api.PUT(path, h)
}

// ApiDELETE registers a DELETE handler under /api.
func ApiDELETE(path string, h echo.HandlerFunc) {
	server.api.DELETE(path, h)
}

// PubPOST registers a POST handler on the server root, outside /api. Used for
// endpoints the gateway calls back into, like webhook delivery.
func PubPOST(path string, h echo.HandlerFunc) {
	server.root.POST(path, h)
}
