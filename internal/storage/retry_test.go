package storage

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	serialization := &pgconn.PgError{Code: "40001"}

	t.Run("retries transient conflicts", func(t *testing.T) {
		var calls int
		err := WithRetry(ctx, 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return serialization
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int
		err := WithRetry(ctx, 2, time.Millisecond, func() error {
			calls++
			return serialization
		})
		assert.ErrorAs(t, err, new(*pgconn.PgError))
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors return immediately", func(t *testing.T) {
		boom := errors.New("boom")
		var calls int
		err := WithRetry(ctx, 5, time.Millisecond, func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}

func TestMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql": {Data: []byte("b")},
		"001_a.sql": {Data: []byte("a")},
		"embed.go":  {Data: []byte("package x")},
	}
	names, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, names)
}
