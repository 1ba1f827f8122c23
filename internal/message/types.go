package message

import (
	"context"
	"time"

	"github.com/ripplechat/ripple/internal/users"
)

// Type classifies message content.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

// Valid reports whether t is a known message type.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo:
		return true
	}
	return false
}

// SenderBot is the sentinel sender id for AI-generated replies. The bot is
// not a conversation participant and bypasses membership checks.
const SenderBot = "ChatGPT"

// Message is a persisted, immutable chat message. Sender is a user id or
// SenderBot.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	Type           Type      `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// View is a message with the sender's profile joined in.
type View struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Content        string        `json:"content"`
	Type           Type          `json:"message_type"`
	CreatedAt      time.Time     `json:"created_at"`
	Sender         users.Profile `json:"sender"`
}

// Store abstracts message persistence. Inserts are append-only; listing is
// ordered by creation time ascending.
type Store interface {
	Insert(ctx context.Context, msg Message) (Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]Message, error)
}

// Directory resolves user records for identity checks and profile joins.
type Directory interface {
	GetByIdentityToken(ctx context.Context, identityToken string) (users.User, error)
	GetByID(ctx context.Context, id string) (users.User, error)
}

// Memberships exposes the participant set of a conversation.
type Memberships interface {
	Participants(ctx context.Context, conversationID string) ([]string, error)
}

// Resolver turns a storage reference into a retrievable URL.
type Resolver interface {
	Resolve(storageRef string) string
}

// Dispatcher inspects a newly appended text message and, when it carries a
// trigger prefix, schedules the asynchronous bot reply. Implementations must
// return quickly; the send mutation does not wait for the job.
type Dispatcher interface {
	Dispatch(ctx context.Context, conversationID, content string) error
}

func botProfile(msgType Type) users.Profile {
	if msgType == TypeImage {
		return users.Profile{Name: "DALL-E", Image: "/dall-e.png"}
	}
	return users.Profile{Name: SenderBot, Image: "/gpt.png"}
}
