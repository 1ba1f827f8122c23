package bot

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeReply is the queue task name for a pending bot reply.
const TaskTypeReply = "bot:reply"

// ReplyPayload is the JSON payload carried by a bot reply task.
type ReplyPayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Kind           Kind   `json:"kind"`
}

// NewReplyTask builds the asynq task for a triggered message.
func NewReplyTask(payload ReplyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal reply payload: %w", err)
	}
	// Single execution attempt per trigger; a failed job writes its fallback
	// instead of retrying.
	return asynq.NewTask(TaskTypeReply, data, asynq.MaxRetry(0)), nil
}
