package telemetry

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLedgerIsNoop(t *testing.T) {
	l, err := NewService(DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &noopLedger{}, l)
	assert.NoError(t, l.Start(context.Background(), &Run{}))
	assert.NoError(t, l.Finish(context.Background(), "", nil))
	assert.NoError(t, l.Close())
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewService(Config{Enabled: true})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidConfig, errors.CodeOf(err))
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))
}

func TestRunLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "telemetry.db")
	l, err := NewService(Config{DBPath: path, Enabled: true})
	require.NoError(t, err)

	ctx := context.Background()
	runID := uuid.NewString()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Start(ctx, &Run{
		ID:        runID,
		StartedAt: started,
		Network:   "unix",
		Socket:    "/tmp/sensor_producer",
		Frequency: 133,
		Devices:   []string{"00:06:66:AA:BB:CC", "00:06:66:AA:BB:CD"},
	}))
	require.NoError(t, l.Finish(ctx, runID, &Result{
		StoppedAt: started.Add(time.Minute),
		Frames:    15960,
		Bytes:     4_500_000,
		Reason:    "signal",
	}))

	err = l.Finish(ctx, "unknown", &Result{StoppedAt: started})
	assert.Equal(t, ErrRunNotFound, errors.CodeOf(err))

	require.NoError(t, l.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var (
		devices   string
		frames    int64
		reason    string
		startedAt int64
		stoppedAt int64
	)
	require.NoError(t, db.QueryRow(
		`SELECT devices, frames, reason, started_at, stopped_at FROM runs WHERE run_id = ?`, runID,
	).Scan(&devices, &frames, &reason, &startedAt, &stoppedAt))
	assert.Equal(t, "00:06:66:AA:BB:CC,00:06:66:AA:BB:CD", devices)
	assert.Equal(t, int64(15960), frames)
	assert.Equal(t, "signal", reason)
	assert.Equal(t, time.Minute, time.Duration(stoppedAt-startedAt))
}

func TestStartValidation(t *testing.T) {
	l, err := NewService(Config{DBPath: filepath.Join(t.TempDir(), "telemetry.db"), Enabled: true})
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, ErrInvalidRun, errors.CodeOf(l.Start(context.Background(), nil)))
	assert.Equal(t, ErrInvalidRun, errors.CodeOf(l.Finish(context.Background(), "id", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = l.Start(ctx, &Run{ID: "x"})
	assert.Equal(t, ErrOperationTimeout, errors.CodeOf(err))
}
