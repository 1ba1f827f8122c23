package bot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplechat/ripple/internal/message"
)

type stubAI struct {
	chatReply string
	chatErr   error
	imageURL  string
	imageErr  error
}

func (s stubAI) CompleteChat(ctx context.Context, prompt string) (string, error) {
	return s.chatReply, s.chatErr
}

func (s stubAI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return s.imageURL, s.imageErr
}

type recordingReplier struct {
	writes []message.Message
	err    error
}

func (r *recordingReplier) SendBotMessage(ctx context.Context, conversationID, content string, msgType message.Type) (message.Message, error) {
	msg := message.Message{
		ConversationID: conversationID,
		Sender:         message.SenderBot,
		Content:        content,
		Type:           msgType,
	}
	r.writes = append(r.writes, msg)
	return msg, r.err
}

func replyTask(t *testing.T, payload ReplyPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskTypeReply, data)
}

func TestHandleReplyChatSuccess(t *testing.T) {
	replier := &recordingReplier{}
	worker := NewWorker(nil, stubAI{chatReply: "One sentence."}, replier)

	err := worker.HandleReply(context.Background(), replyTask(t, ReplyPayload{
		ConversationID: "c1",
		Content:        "@gpt hello",
		Kind:           KindChat,
	}))
	require.NoError(t, err)

	require.Len(t, replier.writes, 1)
	assert.Equal(t, "One sentence.", replier.writes[0].Content)
	assert.Equal(t, message.TypeText, replier.writes[0].Type)
	assert.Equal(t, message.SenderBot, replier.writes[0].Sender)
}

func TestHandleReplyChatFailureWritesFallback(t *testing.T) {
	replier := &recordingReplier{}
	worker := NewWorker(nil, stubAI{chatErr: errors.New("boom")}, replier)

	err := worker.HandleReply(context.Background(), replyTask(t, ReplyPayload{
		ConversationID: "c1",
		Content:        "@gpt hello",
		Kind:           KindChat,
	}))
	require.NoError(t, err, "collaborator failure never fails the job")

	require.Len(t, replier.writes, 1)
	assert.Equal(t, fallbackChatReply, replier.writes[0].Content)
	assert.Equal(t, message.TypeText, replier.writes[0].Type)
}

func TestHandleReplyImageEmptyURLWritesFallback(t *testing.T) {
	replier := &recordingReplier{}
	worker := NewWorker(nil, stubAI{imageURL: ""}, replier)

	err := worker.HandleReply(context.Background(), replyTask(t, ReplyPayload{
		ConversationID: "c1",
		Content:        "@dall-e a cat",
		Kind:           KindImage,
	}))
	require.NoError(t, err)

	require.Len(t, replier.writes, 1)
	assert.Equal(t, fallbackImageURL, replier.writes[0].Content)
	assert.Equal(t, message.TypeImage, replier.writes[0].Type)
}

func TestHandleReplyImageSuccess(t *testing.T) {
	replier := &recordingReplier{}
	worker := NewWorker(nil, stubAI{imageURL: "https://img.test/cat.png"}, replier)

	err := worker.HandleReply(context.Background(), replyTask(t, ReplyPayload{
		ConversationID: "c1",
		Content:        "@dall-e a cat",
		Kind:           KindImage,
	}))
	require.NoError(t, err)

	require.Len(t, replier.writes, 1)
	assert.Equal(t, "https://img.test/cat.png", replier.writes[0].Content)
	assert.Equal(t, message.TypeImage, replier.writes[0].Type)
}

func TestHandleReplyMalformedPayloadDropped(t *testing.T) {
	replier := &recordingReplier{}
	worker := NewWorker(nil, stubAI{}, replier)

	err := worker.HandleReply(context.Background(), asynq.NewTask(TaskTypeReply, []byte("{not json")))
	assert.NoError(t, err)
	assert.Empty(t, replier.writes)
}

func TestHandleReplyWriteFailurePropagates(t *testing.T) {
	replier := &recordingReplier{err: errors.New("db down")}
	worker := NewWorker(nil, stubAI{chatReply: "hi"}, replier)

	err := worker.HandleReply(context.Background(), replyTask(t, ReplyPayload{
		ConversationID: "c1",
		Content:        "@gpt hello",
		Kind:           KindChat,
	}))
	assert.Error(t, err)
}
