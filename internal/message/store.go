package message

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/ripplechat/ripple/internal/db"
)

// PgStore is the postgres-backed message store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a postgres message store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Insert(ctx context.Context, msg Message) (Message, error) {
	pgConvID, err := dbpkg.ParseUUID(msg.ConversationID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid conversation id: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender, content, message_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, sender, content, message_type, created_at`,
		pgConvID, msg.Sender, msg.Content, string(msg.Type),
	)
	return scanMessage(row)
}

func (s *PgStore) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	pgConvID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender, content, message_type, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, id`,
		pgConvID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		msg     Message
		id      pgtype.UUID
		convID  pgtype.UUID
		msgType string
	)
	if err := row.Scan(&id, &convID, &msg.Sender, &msg.Content, &msgType, &msg.CreatedAt); err != nil {
		return Message{}, err
	}
	msg.ID = dbpkg.UUIDString(id)
	msg.ConversationID = dbpkg.UUIDString(convID)
	msg.Type = Type(msgType)
	return msg, nil
}
