package tracking

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	run := Run{
		ID:            "run-1",
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
		Status:        StatusSucceeded,
		Seed:          42,
		TrainRows:     80,
		TestRows:      20,
		MicroAccuracy: 0.8,
		MacroAccuracy: 0.75,
		LogLoss:       0.41,
		ModelPath:     "model.zip",
	}
	require.NoError(t, s.Record(ctx, run))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestRecordReplaces(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Record(ctx, Run{ID: "r", StartedAt: now, FinishedAt: now, Status: StatusFailed, Error: "boom"}))
	require.NoError(t, s.Record(ctx, Run{ID: "r", StartedAt: now, FinishedAt: now, Status: StatusSucceeded}))

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusSucceeded, runs[0].Status)
	assert.Empty(t, runs[0].Error)
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Record(ctx, Run{ID: id, StartedAt: at, FinishedAt: at, Status: StatusSucceeded}))
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
