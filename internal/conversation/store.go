package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/ripplechat/ripple/internal/db"
)

// PgStore is the postgres-backed conversation store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a postgres conversation store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const conversationColumns = "id, participants, is_group, group_name, group_image, admin_id, created_at"

func (s *PgStore) FindByParticipants(ctx context.Context, a, b []string) (Conversation, error) {
	pgA, err := toUUIDArray(a)
	if err != nil {
		return Conversation{}, err
	}
	pgB, err := toUUIDArray(b)
	if err != nil {
		return Conversation{}, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participants = $1 OR participants = $2
		LIMIT 1`,
		pgA, pgB,
	)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrConversationNotFound
		}
		return Conversation{}, err
	}
	return conv, nil
}

func (s *PgStore) Insert(ctx context.Context, conv Conversation) (Conversation, error) {
	pgParticipants, err := toUUIDArray(conv.Participants)
	if err != nil {
		return Conversation{}, err
	}
	var pgAdmin pgtype.UUID
	if conv.AdminID != "" {
		if pgAdmin, err = dbpkg.ParseUUID(conv.AdminID); err != nil {
			return Conversation{}, fmt.Errorf("invalid admin id: %w", err)
		}
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (participants, is_group, group_name, group_image, admin_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+conversationColumns,
		pgParticipants, conv.IsGroup, textOrNull(conv.GroupName), textOrNull(conv.GroupImage), pgAdmin,
	)
	created, err := scanConversation(row)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 on the direct-pair index: a concurrent create won the race.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "conversations_direct_pair_key" {
			return Conversation{}, errDuplicatePair
		}
		return Conversation{}, err
	}
	return created, nil
}

func (s *PgStore) GetByID(ctx context.Context, id string) (Conversation, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Conversation{}, ErrConversationNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, pgID)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrConversationNotFound
		}
		return Conversation{}, err
	}
	return conv, nil
}

func (s *PgStore) ListByParticipant(ctx context.Context, userID string) ([]Conversation, error) {
	pgID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE $1 = ANY (participants)
		ORDER BY created_at`,
		pgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (s *PgStore) LastMessage(ctx context.Context, conversationID string) (*LastMessage, error) {
	pgID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	var (
		last LastMessage
		id   pgtype.UUID
	)
	err = s.pool.QueryRow(ctx, `
		SELECT id, sender, content, message_type, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		pgID,
	).Scan(&id, &last.Sender, &last.Content, &last.Type, &last.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	last.ID = dbpkg.UUIDString(id)
	return &last, nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		conv         Conversation
		id           pgtype.UUID
		participants []pgtype.UUID
		groupName    pgtype.Text
		groupImage   pgtype.Text
		admin        pgtype.UUID
	)
	if err := row.Scan(&id, &participants, &conv.IsGroup, &groupName, &groupImage, &admin, &conv.CreatedAt); err != nil {
		return Conversation{}, err
	}
	conv.ID = dbpkg.UUIDString(id)
	conv.Participants = make([]string, 0, len(participants))
	for _, p := range participants {
		conv.Participants = append(conv.Participants, dbpkg.UUIDString(p))
	}
	conv.GroupName = groupName.String
	conv.GroupImage = groupImage.String
	conv.AdminID = dbpkg.UUIDString(admin)
	return conv, nil
}

func toUUIDArray(ids []string) ([]pgtype.UUID, error) {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		pgID, err := dbpkg.ParseUUID(id)
		if err != nil {
			return nil, fmt.Errorf("invalid participant id: %w", err)
		}
		out = append(out, pgID)
	}
	return out, nil
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
