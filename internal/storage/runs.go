package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

const runColumns = `id, dataset, series_hash, params, summary, mass_balance, steps, warnings, duration_ms, created_at`

// SaveRun inserts a completed run. Serialization failures are retried.
func (db *DB) SaveRun(ctx context.Context, run model.Run) error {
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	err := WithRetry(ctx, 3, 10*time.Millisecond, func() error {
		_, err := db.pool.Exec(ctx,
			`INSERT INTO simulation_runs (`+runColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			run.ID, run.Dataset, run.SeriesHash, run.Params, run.Summary, run.MassBalance,
			run.Steps, warnings, run.DurationMS, run.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("storage: save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (model.Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM simulation_runs WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Run{}, fmt.Errorf("storage: run %s: %w", id, ErrNotFound)
		}
		return model.Run{}, fmt.Errorf("storage: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by created_at DESC.
func (db *DB) ListRuns(ctx context.Context, dataset string, limit, offset int) ([]model.Run, int, error) {
	limit, offset = normalizeLimit(limit, offset)

	var total int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM simulation_runs WHERE $1 = '' OR dataset = $1`, dataset,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count runs: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM simulation_runs
		 WHERE $1 = '' OR dataset = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		dataset, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

func scanRun(row pgx.Row) (model.Run, error) {
	var r model.Run
	err := row.Scan(
		&r.ID, &r.Dataset, &r.SeriesHash, &r.Params, &r.Summary, &r.MassBalance,
		&r.Steps, &r.Warnings, &r.DurationMS, &r.CreatedAt,
	)
	return r, err
}
