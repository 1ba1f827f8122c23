package media

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/ripplechat/ripple/internal/db"
)

// PgHandleStore is the postgres-backed upload handle store.
type PgHandleStore struct {
	pool *pgxpool.Pool
}

// NewPgHandleStore creates a postgres upload handle store.
func NewPgHandleStore(pool *pgxpool.Pool) *PgHandleStore {
	return &PgHandleStore{pool: pool}
}

func (s *PgHandleStore) Create(ctx context.Context, handle UploadHandle) (UploadHandle, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO upload_handles (storage_key)
		VALUES ($1)
		RETURNING id, storage_key, used, created_at`,
		handle.StorageKey,
	)
	return scanHandle(row)
}

func (s *PgHandleStore) Get(ctx context.Context, id string) (UploadHandle, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return UploadHandle{}, ErrHandleNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, storage_key, used, created_at FROM upload_handles WHERE id = $1`, pgID)
	handle, err := scanHandle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UploadHandle{}, ErrHandleNotFound
		}
		return UploadHandle{}, err
	}
	return handle, nil
}

func (s *PgHandleStore) MarkUsed(ctx context.Context, id string) error {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return ErrHandleNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE upload_handles SET used = true WHERE id = $1`, pgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrHandleNotFound
	}
	return nil
}

func (s *PgHandleStore) DeleteExpired(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM upload_handles
		WHERE used = false AND created_at < $1
		RETURNING storage_key`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func scanHandle(row pgx.Row) (UploadHandle, error) {
	var (
		handle UploadHandle
		id     pgtype.UUID
	)
	if err := row.Scan(&id, &handle.StorageKey, &handle.Used, &handle.CreatedAt); err != nil {
		return UploadHandle{}, err
	}
	handle.ID = dbpkg.UUIDString(id)
	return handle, nil
}
