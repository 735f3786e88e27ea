package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/config"
)

// ContextDBKey is the echo context key the request-scoped *gorm.DB is
// stored under.
const ContextDBKey = "gdb"

var server *WebServer

// WebServer wraps the echo engine with a public group and a
// JWT-protected admin group under /api.
type WebServer struct {
	root   *echo.Echo
	pub    *echo.Group
	api    *echo.Group
	config *config.AppConfig
}

// Init builds the global web server. The db handle is injected into
// every request context for the handlers.
func Init(cfg *config.AppConfig, db *gorm.DB) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(ZapLogger())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextDBKey, db)
			return next(c)
		}
	})

	pub := e.Group("/api")
	api := e.Group("/api")
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(cfg.Web.Secret),
	}))

	server = &WebServer{root: e, pub: pub, api: api, config: cfg}
}

// ZapLogger logs each request through the global zap logger.
func ZapLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			zap.L().Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)))
			return err
		}
	}
}

// Start listens on the configured address until the server is shut
// down.
func Start() error {
	addr := fmt.Sprintf("%s:%d", server.config.Web.Host, server.config.Web.Port)
	zap.S().Infof("web server listening on %s", addr)
	err := server.root.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func Shutdown(ctx context.Context) error {
	if server == nil {
		return nil
	}
	return server.root.Shutdown(ctx)
}

// Echo exposes the underlying engine (used in tests).
func Echo() *echo.Echo {
	return server.root
}

// Public route helpers: no authentication.

func PubGET(path string, h echo.HandlerFunc)    { server.pub.GET(path, h) }
func PubPOST(path string, h echo.HandlerFunc)   { server.pub.POST(path, h) }
func PubPUT(path string, h echo.HandlerFunc)    { server.pub.PUT(path, h) }
func PubDELETE(path string, h echo.HandlerFunc) { server.pub.DELETE(path, h) }

// Admin route helpers: JWT required.

func ApiGET(path string, h echo.HandlerFunc)    { server.api.GET(path, h) }
func ApiPOST(path string, h echo.HandlerFunc)   { server.api.POST(path, h) }
func ApiPUT(path string, h echo.HandlerFunc)    { server.api.PUT(path, h) }
func ApiDELETE(path string, h echo.HandlerFunc) { server.api.DELETE(path, h) }
