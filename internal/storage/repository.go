package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finboard/internal/core"

	_ "modernc.org/sqlite"
)

// maxRefreshRuns bounds the refresh history table.
const maxRefreshRuns = 1000

// defaultRefreshRuns is the listing size when no valid limit is given.
const defaultRefreshRuns = 50

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Several processes share the credential store; wait for their locks.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Get implements credential.Store. Absent keys yield "".
func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %s: %w", key, err)
	}
	return value, nil
}

// Set implements credential.Store.
func (r *SQLiteRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("set credential %s: %w", key, err)
	}
	slog.InfoContext(ctx, "Credential stored", "key", key)
	return nil
}

// Delete implements credential.Store. Deleting an absent key is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete credential %s: %w", key, err)
	}
	slog.InfoContext(ctx, "Credential removed", "key", key)
	return nil
}

// RecordRefresh appends a run to the history and trims the oldest rows.
func (r *SQLiteRepository) RecordRefresh(ctx context.Context, run core.RefreshRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_runs (started_at, finished_at, trigger, silent, outcome, income_count, expense_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.Trigger,
		run.Silent,
		run.Outcome,
		run.IncomeCount,
		run.ExpenseCount,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert refresh run: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_runs WHERE id <= (SELECT MAX(id) FROM refresh_runs) - ?`, maxRefreshRuns); err != nil {
		slog.WarnContext(ctx, "Failed to trim refresh history", "error", err)
	}
	return nil
}

// ListRefreshRuns returns the most recent runs, newest first.
func (r *SQLiteRepository) ListRefreshRuns(ctx context.Context, limit int) ([]core.RefreshRun, error) {
	if limit <= 0 || limit > maxRefreshRuns {
		limit = defaultRefreshRuns
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, trigger, silent, outcome, income_count, expense_count, error
		FROM refresh_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list refresh runs: %w", err)
	}
	defer rows.Close()

	runs := make([]core.RefreshRun, 0, limit)
	for rows.Next() {
		var (
			run               core.RefreshRun
			started, finished string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Trigger, &run.Silent, &run.Outcome,
			&run.IncomeCount, &run.ExpenseCount, &run.Error); err != nil {
			return nil, fmt.Errorf("scan refresh run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("refresh run %d started_at: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("refresh run %d finished_at: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh runs: %w", err)
	}
	return runs, nil
}
