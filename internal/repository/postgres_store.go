package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zey041022/poem-web-app/internal/domain"
)

const assetsSchema = `
	CREATE TABLE IF NOT EXISTS assets (
		name       TEXT PRIMARY KEY,
		format     TEXT NOT NULL,
		width      INTEGER NOT NULL,
		height     INTEGER NOT NULL,
		data       BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)
`

// PostgresAssetStore keeps assets in the assets table
type PostgresAssetStore struct {
	db *sql.DB
}

// NewPostgresAssetStore creates a new PostgreSQL asset store
func NewPostgresAssetStore(db *sql.DB) *PostgresAssetStore {
	return &PostgresAssetStore{db: db}
}

// EnsureSchema creates the assets table if it does not exist
func (r *PostgresAssetStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, assetsSchema); err != nil {
		return fmt.Errorf("failed to create assets table: %w", err)
	}
	return nil
}

// Save inserts an asset. Saving an existing name is a no-op.
func (r *PostgresAssetStore) Save(ctx context.Context, id domain.AssetID, asset domain.ImageAsset) error {
	query := `
		INSERT INTO assets (name, format, width, height, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, string(id), asset.Format, asset.Width, asset.Height, asset.Bytes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert asset %s: %w", id, err)
	}
	return nil
}

// Exists reports whether an asset with this name is stored
func (r *PostgresAssetStore) Exists(ctx context.Context, id domain.AssetID) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM assets WHERE name = $1)`, string(id)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to look up asset %s: %w", id, err)
	}
	return ok, nil
}

// Load retrieves a stored asset
func (r *PostgresAssetStore) Load(ctx context.Context, id domain.AssetID) (domain.ImageAsset, error) {
	query := `
		SELECT format, width, height, data
		FROM assets
		WHERE name = $1
	`

	var a domain.ImageAsset
	err := r.db.QueryRowContext(ctx, query, string(id)).Scan(&a.Format, &a.Width, &a.Height, &a.Bytes)
	if err != nil {
		return domain.ImageAsset{}, fmt.Errorf("failed to load asset %s: %w", id, err)
	}
	return a, nil
}

// PruneBefore deletes generated assets created before cutoff
func (r *PostgresAssetStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM assets
		WHERE name LIKE $1
		AND created_at < $2
	`

	res, err := r.db.ExecContext(ctx, query, domain.AssetPrefix+"%", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune assets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
