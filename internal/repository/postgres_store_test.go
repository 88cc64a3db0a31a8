package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zey041022/poem-web-app/internal/domain"
)

// openTestDB connects to POSTGRES_TEST_DSN or skips.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())
	return db
}

func TestPostgresAssetStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewPostgresAssetStore(db)
	require.NoError(t, store.EnsureSchema(ctx))

	id := domain.NewAssetID()
	t.Cleanup(func() { db.Exec(`DELETE FROM assets WHERE name = $1`, string(id)) })

	asset := domain.ImageAsset{Bytes: []byte{0xFF, 0xD8, 0xFF}, Width: 4, Height: 3, Format: domain.CanonicalFormat}
	require.NoError(t, store.Save(ctx, id, asset))
	require.NoError(t, store.Save(ctx, id, asset))

	ok, err := store.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, asset, got)

	n, err := store.PruneBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	ok, err = store.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
