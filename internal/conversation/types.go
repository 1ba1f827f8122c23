package conversation

import (
	"context"
	"time"

	"github.com/ripplechat/ripple/internal/users"
)

// Conversation is a 1:1 or group chat. Participants are stored as an ordered
// sequence but equality for 1:1 dedup is order-insensitive (see Service.Create).
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	IsGroup      bool      `json:"is_group"`
	GroupName    string    `json:"group_name,omitempty"`
	GroupImage   string    `json:"group_image,omitempty"`
	AdminID      string    `json:"admin,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LastMessage is the newest message of a conversation joined into the list
// view.
type LastMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Type      string    `json:"message_type"`
	CreatedAt time.Time `json:"created_at"`
}

// View is the denormalized conversation returned by ListMine: the record
// itself, the peer's profile for 1:1 chats, and the most recent message.
type View struct {
	Conversation
	Peer        *users.Profile `json:"peer,omitempty"`
	LastMessage *LastMessage   `json:"last_message"`
}

// CreateRequest is the input for creating a conversation.
type CreateRequest struct {
	Participants []string `json:"participants" validate:"required,min=2,dive,uuid4"`
	IsGroup      bool     `json:"is_group"`
	GroupName    string   `json:"group_name,omitempty"`
	// GroupImage is a media storage reference, resolved to a public URL on
	// insert.
	GroupImage string `json:"group_image,omitempty"`
	Admin      string `json:"admin,omitempty"`
}

// Store abstracts conversation persistence.
type Store interface {
	// FindByParticipants returns the conversation whose participant sequence
	// equals either of the two given sequences, or ErrConversationNotFound.
	FindByParticipants(ctx context.Context, a, b []string) (Conversation, error)
	// Insert persists a new conversation. Inserting a direct conversation for
	// an already-taken unordered pair fails with errDuplicatePair.
	Insert(ctx context.Context, conv Conversation) (Conversation, error)
	GetByID(ctx context.Context, id string) (Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]Conversation, error)
	LastMessage(ctx context.Context, conversationID string) (*LastMessage, error)
}

// Directory resolves user records for identity checks and profile joins.
type Directory interface {
	GetByIdentityToken(ctx context.Context, identityToken string) (users.User, error)
	GetByID(ctx context.Context, id string) (users.User, error)
}

// Resolver turns a storage reference into a retrievable URL.
type Resolver interface {
	Resolve(storageRef string) string
}
