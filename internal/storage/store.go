package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/migrations"
)

// defaultListLimit caps list queries that pass no limit.
const defaultListLimit = 50

// Store is implemented by DB and Lite.
type Store interface {
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (model.Run, error)
	// ListRuns returns runs newest first, optionally restricted to one
	// dataset, with the total matching count.
	ListRuns(ctx context.Context, dataset string, limit, offset int) ([]model.Run, int, error)
	Ping(ctx context.Context) error
	Kind() string
	Close(ctx context.Context)
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*Lite)(nil)
)

// Open picks a backend from dsn: postgres:// and postgresql:// URLs open a
// migrated Postgres pool, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err := New(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			db.Close(ctx)
			return nil, err
		}
		return db, nil
	}
	lite, err := OpenLite(ctx, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite %q: %w", dsn, err)
	}
	return lite, nil
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
