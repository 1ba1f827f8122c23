package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ripplechat/ripple/internal/auth"
	"github.com/ripplechat/ripple/internal/config"
)

// Handler is anything that can attach routes to the echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Server wraps the echo instance and its listen address.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// CustomValidator adapts go-playground/validator to echo's Validator hook.
type CustomValidator struct {
	validate *validator.Validate
}

func (v *CustomValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// New builds the HTTP server: middleware, auth, validation and all routes.
func New(log *slog.Logger, cfg *config.Config, handlers []Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("component", "server"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
				logger.Error("request", attrs...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(cfg.Auth.JWTSecret, publicRouteSkipper))

	for _, h := range handlers {
		h.Register(e)
	}

	return &Server{
		echo:   e,
		addr:   cfg.Server.Addr,
		logger: logger,
	}
}

// publicRouteSkipper exempts liveness, auth and blob retrieval from JWT auth.
func publicRouteSkipper(c echo.Context) bool {
	path := c.Request().URL.Path
	if path == "/ping" {
		return true
	}
	if strings.HasPrefix(path, "/auth/") {
		return true
	}
	if c.Request().Method == http.MethodGet &&
		strings.HasPrefix(path, "/media/") &&
		!strings.HasPrefix(path, "/media/upload") {
		return true
	}
	return false
}

// Start begins serving. It blocks until the listener fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
