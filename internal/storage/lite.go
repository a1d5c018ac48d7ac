package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

const liteSchema = `
CREATE TABLE IF NOT EXISTS simulation_runs (
	id           TEXT PRIMARY KEY,
	dataset      TEXT NOT NULL,
	series_hash  TEXT NOT NULL,
	params       TEXT NOT NULL,
	summary      TEXT NOT NULL,
	mass_balance TEXT NOT NULL,
	steps        INTEGER NOT NULL,
	warnings     TEXT NOT NULL DEFAULT '[]',
	duration_ms  INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS simulation_runs_dataset_created_idx
	ON simulation_runs (dataset, created_at DESC);
`

// liteTime is fixed width so created_at sorts lexically.
const liteTime = "2006-01-02T15:04:05.000000000Z"

// Lite is the SQLite run store.
type Lite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenLite opens or creates the database file at path and ensures the schema.
func OpenLite(ctx context.Context, path string, logger *slog.Logger) (*Lite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, liteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Lite{db: db, logger: logger}, nil
}

// SaveRun inserts a completed run.
func (l *Lite) SaveRun(ctx context.Context, run model.Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("storage: encode params: %w", err)
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("storage: encode summary: %w", err)
	}
	balance, err := json.Marshal(run.MassBalance)
	if err != nil {
		return fmt.Errorf("storage: encode mass balance: %w", err)
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warn, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("storage: encode warnings: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO simulation_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Dataset, run.SeriesHash, string(params), string(summary), string(balance),
		run.Steps, string(warn), run.DurationMS, run.CreatedAt.UTC().Format(liteTime),
	)
	if err != nil {
		return fmt.Errorf("storage: save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (l *Lite) GetRun(ctx context.Context, id uuid.UUID) (model.Run, error) {
	run, err := scanLiteRun(l.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM simulation_runs WHERE id = ?`, id.String(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Run{}, fmt.Errorf("storage: run %s: %w", id, ErrNotFound)
		}
		return model.Run{}, fmt.Errorf("storage: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by created_at DESC.
func (l *Lite) ListRuns(ctx context.Context, dataset string, limit, offset int) ([]model.Run, int, error) {
	limit, offset = normalizeLimit(limit, offset)

	var total int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM simulation_runs WHERE ?1 = '' OR dataset = ?1`, dataset,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count runs: %w", err)
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM simulation_runs
		 WHERE ?1 = '' OR dataset = ?1
		 ORDER BY created_at DESC, id
		 LIMIT ?2 OFFSET ?3`,
		dataset, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		r, err := scanLiteRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLiteRun(row scanner) (model.Run, error) {
	var (
		r                                  model.Run
		id, params, summary, bal, warnings string
		created                            string
	)
	if err := row.Scan(&id, &r.Dataset, &r.SeriesHash, &params, &summary, &bal,
		&r.Steps, &warnings, &r.DurationMS, &created); err != nil {
		return model.Run{}, err
	}

	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return model.Run{}, fmt.Errorf("parse id: %w", err)
	}
	if r.CreatedAt, err = time.Parse(liteTime, created); err != nil {
		return model.Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	for _, f := range []struct {
		raw string
		dst any
	}{
		{params, &r.Params},
		{summary, &r.Summary},
		{bal, &r.MassBalance},
		{warnings, &r.Warnings},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return model.Run{}, fmt.Errorf("decode run column: %w", err)
		}
	}
	return r, nil
}

// Ping checks the database handle.
func (l *Lite) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Kind identifies the backend in health output.
func (l *Lite) Kind() string { return "sqlite" }

// Close closes the database.
func (l *Lite) Close(context.Context) {
	if err := l.db.Close(); err != nil {
		l.logger.Warn("storage: close sqlite", "error", err)
	}
}
