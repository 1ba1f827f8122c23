package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripplechat/ripple/internal/users"
)

// UserLister is the slice of the user directory the users handler needs.
type UserLister interface {
	List(ctx context.Context) ([]users.User, error)
}

// UsersHandler serves the user directory listing.
type UsersHandler struct {
	service UserLister
	logger  *slog.Logger
}

// NewUsersHandler creates a UsersHandler.
func NewUsersHandler(log *slog.Logger, service UserLister) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		service: service,
		logger:  log.With(slog.String("handler", "users")),
	}
}

// Register registers the user routes.
func (h *UsersHandler) Register(e *echo.Echo) {
	e.GET("/users", h.ListUsers)
}

// ListUsers returns all registered users as public profiles.
func (h *UsersHandler) ListUsers(c echo.Context) error {
	list, err := h.service.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	profiles := make([]users.Profile, 0, len(list))
	for _, user := range list {
		profiles = append(profiles, user.Profile())
	}
	return c.JSON(http.StatusOK, profiles)
}
