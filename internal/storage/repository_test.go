package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/core"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "finboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCredentials(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	v, err := repo.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, repo.Set(ctx, "token", "abc"))
	require.NoError(t, repo.Set(ctx, "token", "def"))
	v, err = repo.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	require.NoError(t, repo.Delete(ctx, "token"))
	require.NoError(t, repo.Delete(ctx, "token"))
	v, err = repo.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestRefreshRuns(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordRefresh(ctx, core.RefreshRun{
			StartedAt:    start.Add(time.Duration(i) * time.Minute),
			FinishedAt:   start.Add(time.Duration(i)*time.Minute + time.Second),
			Trigger:      "timer",
			Silent:       i > 0,
			Outcome:      core.OutcomeSuccess,
			IncomeCount:  i,
			ExpenseCount: 2 * i,
		}))
	}

	runs, err := repo.ListRefreshRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].IncomeCount, "newest first")
	assert.True(t, runs[0].Silent)
	assert.True(t, start.Add(2*time.Minute).Equal(runs[0].StartedAt))
	assert.Equal(t, "timer", runs[1].Trigger)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finboard.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	assert.NoError(t, RunMigrations(path))
}

func TestListRefreshRunsRejectsCorruptTimestamps(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO refresh_runs (started_at, finished_at, trigger, silent, outcome, income_count, expense_count, error)
		VALUES ('yesterday', '2024-02-01T09:00:00Z', 'timer', 1, 'success', 0, 0, '')`)
	require.NoError(t, err)

	_, err = repo.ListRefreshRuns(ctx, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "started_at")
}
