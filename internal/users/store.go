package users

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

// PgStore is the postgres-backed user store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a postgres user store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const userColumns = "id, name, email, image, password_hash, identity_token, created_at"

func (s *PgStore) Create(ctx context.Context, user User) (User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, image, password_hash, identity_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.Name, user.Email, textOrNull(user.Image), user.PasswordHash, user.IdentityToken,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique violation on email.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *PgStore) GetByIdentityToken(ctx context.Context, identityToken string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE identity_token = $1`, identityToken)
	return scanNotFound(scanUser(row))
}

func (s *PgStore) GetByID(ctx context.Context, id string) (User, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, pgID)
	return scanNotFound(scanUser(row))
}

func (s *PgStore) GetByEmail(ctx context.Context, email string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanNotFound(scanUser(row))
}

func (s *PgStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user  User
		id    pgtype.UUID
		image pgtype.Text
	)
	if err := row.Scan(&id, &user.Name, &user.Email, &image, &user.PasswordHash, &user.IdentityToken, &user.CreatedAt); err != nil {
		return User{}, err
	}
	user.ID = dbpkg.UUIDString(id)
	user.Image = image.String
	return user, nil
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func scanNotFound(user User, err error) (User, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return user, nil
}
