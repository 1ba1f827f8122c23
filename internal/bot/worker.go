package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/ripplechat/ripple/internal/ai"
	"github.com/ripplechat/ripple/internal/message"
)

// Fallbacks written when the collaborator fails or returns nothing. The job
// completes either way; the error never reaches the triggering user beyond
// this placeholder.
const (
	fallbackChatReply = "I am sorry, I don't have a response for that"
	fallbackImageURL  = "/poopenai.png"
)

// Replier is the privileged write path the worker uses to attribute replies
// to the bot sentinel.
type Replier interface {
	SendBotMessage(ctx context.Context, conversationID, content string, msgType message.Type) (message.Message, error)
}

// Worker executes queued bot reply jobs: call the collaborator, write the
// result (or the fallback) back into the conversation.
type Worker struct {
	client  ai.Client
	replier Replier
	logger  *slog.Logger
}

// NewWorker creates a bot reply worker.
func NewWorker(log *slog.Logger, client ai.Client, replier Replier) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		client:  client,
		replier: replier,
		logger:  log.With(slog.String("service", "bot-worker")),
	}
}

// Register binds the worker's handlers onto the queue mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeReply, w.HandleReply)
}

// HandleReply runs one reply job. Collaborator failures are recovered into
// the fallback message; only the final write can fail the task.
func (w *Worker) HandleReply(ctx context.Context, task *asynq.Task) error {
	var payload ReplyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payload can never succeed; drop it.
		w.logger.Error("malformed bot reply payload", slog.Any("error", err))
		return nil
	}

	content, msgType := w.produce(ctx, payload)
	if _, err := w.replier.SendBotMessage(ctx, payload.ConversationID, content, msgType); err != nil {
		return fmt.Errorf("write bot reply: %w", err)
	}
	return nil
}

func (w *Worker) produce(ctx context.Context, payload ReplyPayload) (string, message.Type) {
	switch payload.Kind {
	case KindImage:
		url, err := w.client.GenerateImage(ctx, payload.Content)
		if err != nil {
			w.logger.Warn("image generation failed",
				slog.String("conversation_id", payload.ConversationID), slog.Any("error", err))
		}
		if strings.TrimSpace(url) == "" {
			return fallbackImageURL, message.TypeImage
		}
		return url, message.TypeImage
	default:
		reply, err := w.client.CompleteChat(ctx, payload.Content)
		if err != nil {
			w.logger.Warn("chat completion failed",
				slog.String("conversation_id", payload.ConversationID), slog.Any("error", err))
		}
		if strings.TrimSpace(reply) == "" {
			return fallbackChatReply, message.TypeText
		}
		return reply, message.TypeText
	}
}
