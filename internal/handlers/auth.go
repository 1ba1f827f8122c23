package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ripplechat/ripple/internal/auth"
	"github.com/ripplechat/ripple/internal/users"
)

// Registrar is the slice of the user directory the auth handler needs.
type Registrar interface {
	Register(ctx context.Context, req users.RegisterRequest) (users.User, error)
	Authenticate(ctx context.Context, email, password string) (users.User, error)
}

// AuthHandler handles registration and login.
type AuthHandler struct {
	service   Registrar
	jwtSecret string
	expiresIn time.Duration
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(log *slog.Logger, service Registrar, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		service:   service,
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("handler", "auth")),
	}
}

// Register registers the auth routes.
func (h *AuthHandler) Register(e *echo.Echo) {
	group := e.Group("/auth")
	group.POST("/register", h.RegisterUser)
	group.POST("/login", h.Login)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      users.User `json:"user"`
}

// RegisterUser creates a user and returns a signed token for it.
func (h *AuthHandler) RegisterUser(c echo.Context) error {
	var req users.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Register(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return h.respondWithToken(c, http.StatusCreated, user)
}

// Login verifies credentials and returns a signed token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(c echo.Context, status int, user users.User) error {
	token, expiresAt, err := auth.GenerateToken(user.ID, user.IdentityToken, h.jwtSecret, h.expiresIn)
	if err != nil {
		h.logger.Error("token generation failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(status, tokenResponse{Token: token, ExpiresAt: expiresAt, User: user})
}
