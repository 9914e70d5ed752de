package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colorpipe/colorpipe/internal/logger"
)

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := logger.FromContext(ctx)

	const schema = `
CREATE TABLE IF NOT EXISTS media_items (
	id                UUID PRIMARY KEY,
	owner_id          TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	storage_key       TEXT NOT NULL,
	media_type        TEXT NOT NULL,
	uploaded_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_processed      BOOLEAN NOT NULL DEFAULT false,
	original_media_id UUID
);
CREATE INDEX IF NOT EXISTS idx_media_items_owner ON media_items (owner_id, uploaded_at DESC);

CREATE TABLE IF NOT EXISTS filter_items (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	filter_type TEXT NOT NULL,
	owner_id    TEXT
);
CREATE INDEX IF NOT EXISTS idx_filter_items_owner ON filter_items (owner_id);
`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	log.Info("metadata schema ready")
	return nil
}

func (s *PostgresStore) PutMedia(ctx context.Context, item MediaItem) error {
	const q = `
INSERT INTO media_items (id, owner_id, original_filename, storage_key, media_type, uploaded_at, is_processed, original_media_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	original_filename = EXCLUDED.original_filename,
	storage_key       = EXCLUDED.storage_key,
	media_type        = EXCLUDED.media_type,
	is_processed      = EXCLUDED.is_processed,
	original_media_id = EXCLUDED.original_media_id
`

	_, err := s.pool.Exec(ctx, q,
		item.ID, item.OwnerID, item.OriginalFilename, item.StorageKey,
		item.MediaType, item.UploadedAt, item.IsProcessed, item.OriginalMediaID,
	)
	if err != nil {
		return fmt.Errorf("put media %s: %w", item.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetMedia(ctx context.Context, id uuid.UUID) (*MediaItem, error) {
	const q = `
SELECT id, owner_id, original_filename, storage_key, media_type, uploaded_at, is_processed, original_media_id
FROM media_items WHERE id = $1
`

	var item MediaItem
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&item.ID, &item.OwnerID, &item.OriginalFilename, &item.StorageKey,
		&item.MediaType, &item.UploadedAt, &item.IsProcessed, &item.OriginalMediaID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get media %s: %w", id, err)
	}
	return &item, nil
}

func (s *PostgresStore) ListMediaByOwner(ctx context.Context, ownerID string) ([]MediaItem, error) {
	const q = `
SELECT id, owner_id, original_filename, storage_key, media_type, uploaded_at, is_processed, original_media_id
FROM media_items WHERE owner_id = $1
ORDER BY uploaded_at DESC
`

	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list media for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		var item MediaItem
		if err := rows.Scan(
			&item.ID, &item.OwnerID, &item.OriginalFilename, &item.StorageKey,
			&item.MediaType, &item.UploadedAt, &item.IsProcessed, &item.OriginalMediaID,
		); err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeleteMediaByOwner(ctx context.Context, ownerID string) ([]string, error) {
	const q = `DELETE FROM media_items WHERE owner_id = $1 RETURNING storage_key`

	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("delete media for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan deleted key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) PutFilter(ctx context.Context, item FilterItem) error {
	const q = `
INSERT INTO filter_items (id, name, storage_key, filter_type, owner_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	name        = EXCLUDED.name,
	storage_key = EXCLUDED.storage_key,
	filter_type = EXCLUDED.filter_type,
	owner_id    = EXCLUDED.owner_id
`

	_, err := s.pool.Exec(ctx, q, item.ID, item.Name, item.StorageKey, item.FilterType, item.OwnerID)
	if err != nil {
		return fmt.Errorf("put filter %s: %w", item.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetFilter(ctx context.Context, id uuid.UUID) (*FilterItem, error) {
	const q = `SELECT id, name, storage_key, filter_type, owner_id FROM filter_items WHERE id = $1`

	var item FilterItem
	err := s.pool.QueryRow(ctx, q, id).Scan(&item.ID, &item.Name, &item.StorageKey, &item.FilterType, &item.OwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get filter %s: %w", id, err)
	}
	return &item, nil
}

func (s *PostgresStore) ListFiltersForOwner(ctx context.Context, ownerID string) ([]FilterItem, error) {
	// Defaults first, then the owner's filters, stable within each
	// group so pagination stays deterministic.
	const q = `
SELECT id, name, storage_key, filter_type, owner_id
FROM filter_items
WHERE owner_id IS NULL OR owner_id = $1
ORDER BY (owner_id IS NOT NULL), name, id
`

	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list filters for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var items []FilterItem
	for rows.Next() {
		var item FilterItem
		if err := rows.Scan(&item.ID, &item.Name, &item.StorageKey, &item.FilterType, &item.OwnerID); err != nil {
			return nil, fmt.Errorf("scan filter row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
