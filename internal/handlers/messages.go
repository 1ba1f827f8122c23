package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripplechat/ripple/internal/auth"
	"github.com/ripplechat/ripple/internal/message"
	"github.com/ripplechat/ripple/internal/message/event"
)

// MessageService is the slice of the message service this handler needs.
type MessageService interface {
	SendText(ctx context.Context, identityToken, conversationID, content string) (message.Message, error)
	SendImage(ctx context.Context, identityToken, conversationID, storageRef string) (message.Message, error)
	SendVideo(ctx context.Context, identityToken, conversationID, storageRef string) (message.Message, error)
	List(ctx context.Context, conversationID string) ([]message.View, error)
}

// MessagesHandler serves message sending, history and the per-conversation
// change feed.
type MessagesHandler struct {
	service MessageService
	events  event.Subscriber
	logger  *slog.Logger
}

// NewMessagesHandler creates a MessagesHandler.
func NewMessagesHandler(log *slog.Logger, service MessageService, events event.Subscriber) *MessagesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessagesHandler{
		service: service,
		events:  events,
		logger:  log.With(slog.String("handler", "messages")),
	}
}

// Register registers the message routes.
func (h *MessagesHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations/:id/messages")
	group.POST("", h.SendMessage)
	group.GET("", h.ListMessages)
	group.GET("/events", h.StreamMessageEvents)
}

type sendMessageRequest struct {
	MessageType string `json:"message_type" validate:"required,oneof=text image video"`
	Content     string `json:"content"`
	StorageRef  string `json:"storage_ref"`
}

// SendMessage appends a message to the conversation. Text messages carry
// content, image and video messages carry a storage ref.
func (h *MessagesHandler) SendMessage(c echo.Context) error {
	identityToken, err := auth.IdentityTokenFromContext(c)
	if err != nil {
		return err
	}
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conversationID := c.Param("id")
	ctx := c.Request().Context()

	var msg message.Message
	switch message.Type(req.MessageType) {
	case message.TypeText:
		if req.Content == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "content is required for text messages")
		}
		msg, err = h.service.SendText(ctx, identityToken, conversationID, req.Content)
	case message.TypeImage:
		if req.StorageRef == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "storage_ref is required for image messages")
		}
		msg, err = h.service.SendImage(ctx, identityToken, conversationID, req.StorageRef)
	case message.TypeVideo:
		if req.StorageRef == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "storage_ref is required for video messages")
		}
		msg, err = h.service.SendVideo(ctx, identityToken, conversationID, req.StorageRef)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// ListMessages returns the conversation history, oldest first, with sender
// profiles attached.
func (h *MessagesHandler) ListMessages(c echo.Context) error {
	if _, err := auth.IdentityTokenFromContext(c); err != nil {
		return err
	}
	views, err := h.service.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, views)
}

// StreamMessageEvents delivers new-message notifications for one conversation
// as server-sent events.
func (h *MessagesHandler) StreamMessageEvents(c echo.Context) error {
	if _, err := auth.IdentityTokenFromContext(c); err != nil {
		return err
	}
	return streamEvents(c, h.events, event.ConversationTopic(c.Param("id")))
}
