package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripplechat/ripple/internal/auth"
	"github.com/ripplechat/ripple/internal/conversation"
	"github.com/ripplechat/ripple/internal/message/event"
	"github.com/ripplechat/ripple/internal/users"
)

// ConversationService is the slice of the conversation store this handler
// needs.
type ConversationService interface {
	Create(ctx context.Context, req conversation.CreateRequest) (conversation.Conversation, error)
	ListMine(ctx context.Context, identityToken string) ([]conversation.View, error)
}

// CallerDirectory resolves the caller's user record from the identity token.
type CallerDirectory interface {
	GetByIdentityToken(ctx context.Context, identityToken string) (users.User, error)
}

// ConversationsHandler serves conversation creation, listing and the
// conversation-list change feed.
type ConversationsHandler struct {
	service   ConversationService
	directory CallerDirectory
	events    event.Subscriber
	logger    *slog.Logger
}

// NewConversationsHandler creates a ConversationsHandler.
func NewConversationsHandler(log *slog.Logger, service ConversationService, directory CallerDirectory, events event.Subscriber) *ConversationsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationsHandler{
		service:   service,
		directory: directory,
		events:    events,
		logger:    log.With(slog.String("handler", "conversations")),
	}
}

// Register registers the conversation routes.
func (h *ConversationsHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations")
	group.POST("", h.CreateConversation)
	group.GET("", h.ListMyConversations)
	group.GET("/events", h.StreamConversationEvents)
}

// CreateConversation creates (or idempotently returns) a conversation.
func (h *ConversationsHandler) CreateConversation(c echo.Context) error {
	if _, err := auth.IdentityTokenFromContext(c); err != nil {
		return err
	}
	var req conversation.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conv, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

// ListMyConversations returns the caller's conversations, denormalized.
func (h *ConversationsHandler) ListMyConversations(c echo.Context) error {
	identityToken, err := auth.IdentityTokenFromContext(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListMine(c.Request().Context(), identityToken)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, views)
}

// StreamConversationEvents delivers conversation-list changes for the caller
// as server-sent events.
func (h *ConversationsHandler) StreamConversationEvents(c echo.Context) error {
	identityToken, err := auth.IdentityTokenFromContext(c)
	if err != nil {
		return err
	}
	caller, err := h.directory.GetByIdentityToken(c.Request().Context(), identityToken)
	if err != nil {
		return httpError(err)
	}
	return streamEvents(c, h.events, event.UserTopic(caller.ID))
}
