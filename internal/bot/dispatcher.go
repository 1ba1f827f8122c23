package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Enqueuer is the slice of the queue client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher inspects appended text messages and schedules one-shot reply
// jobs on the work queue. Enqueueing is fire-and-forget from the sending
// mutation's perspective.
type Dispatcher struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewDispatcher creates a bot dispatcher backed by the given queue client.
func NewDispatcher(log *slog.Logger, queue Enqueuer) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		queue:  queue,
		logger: log.With(slog.String("service", "bot-dispatcher")),
	}
}

// Dispatch schedules a reply job when content carries a trigger prefix.
// Untriggered messages are a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, conversationID, content string) error {
	kind, ok := Detect(content)
	if !ok {
		return nil
	}
	task, err := NewReplyTask(ReplyPayload{
		ConversationID: conversationID,
		Content:        content,
		Kind:           kind,
	})
	if err != nil {
		return err
	}
	info, err := d.queue.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue bot reply: %w", err)
	}
	d.logger.Debug("bot reply dispatched",
		slog.String("task_id", info.ID),
		slog.String("conversation_id", conversationID),
		slog.String("kind", string(kind)))
	return nil
}
