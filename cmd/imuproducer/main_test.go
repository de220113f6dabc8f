package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/imuproducer/internal/framing"
	"codeberg.org/mutker/imuproducer/internal/record"
	"codeberg.org/mutker/imuproducer/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const device = "00:06:66:AA:BB:CC"

func baseArgs(t *testing.T) (string, []string) {
	t.Helper()
	t.Setenv("IMUPRODUCER_CONFIG", "")
	dir := t.TempDir()
	return dir, []string{
		"--socket", filepath.Join(dir, "bus.sock"),
		"--pid-file", filepath.Join(dir, "imuproducer.pid"),
		"--log-level", "error",
	}
}

func TestRunConfigErrors(t *testing.T) {
	_, args := baseArgs(t)

	assert.Equal(t, exitConfig, run(context.Background(), args), "missing device")
	assert.Equal(t, exitConfig, run(context.Background(), append(args, "00:06:66:AA:BB")), "malformed device")
	assert.Equal(t, exitConfig, run(context.Background(), append(args, "--frequency", "0", device)))
	assert.Equal(t, exitOK, run(context.Background(), []string{"--help"}))
}

func TestRunConnectFailure(t *testing.T) {
	dir, args := baseArgs(t)

	assert.Equal(t, exitRuntime, run(context.Background(), append(args, device)))

	_, err := os.Stat(filepath.Join(dir, "imuproducer.pid"))
	assert.True(t, os.IsNotExist(err), "pid file is removed on failure")
}

func TestRunStreamsUntilCancelled(t *testing.T) {
	dir, args := baseArgs(t)
	telemetryDB := filepath.Join(dir, "telemetry.db")
	args = append(args,
		"--telemetry", "--telemetry-db", telemetryDB,
		"--metrics", "--metrics-db", filepath.Join(dir, "metrics.db"),
		"--frequency", "200",
		"--sim-rate", "400",
		device, "00:06:66:AA:BB:CD",
	)

	l, err := transport.Listen(context.Background(), "unix", filepath.Join(dir, "bus.sock"))
	require.NoError(t, err)
	defer l.Close()

	records := make(chan record.Record, 16)
	go func() {
		defer close(records)
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := framing.NewReader(conn, 0)
		for {
			payload, err := r.ReadFrame()
			if err != nil {
				return
			}
			rec, err := record.Decode(payload)
			if err != nil {
				return
			}
			select {
			case records <- rec:
			default:
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, args)
	}()

	seen := map[int]bool{}
	timeout := time.After(10 * time.Second)
	for len(seen) < 2 {
		select {
		case rec, ok := <-records:
			require.True(t, ok, "stream closed early")
			assert.Equal(t, 0, rec.ID)
			assert.Equal(t, [4]float64{}, rec.Data.Offset)
			seen[rec.IID] = true
		case <-timeout:
			t.Fatal("no records received")
		}
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, seen)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, exitOK, code)
	case <-time.After(10 * time.Second):
		t.Fatal("producer did not stop")
	}

	for range records {
	}

	_, err = os.Stat(filepath.Join(dir, "imuproducer.pid"))
	assert.True(t, os.IsNotExist(err))

	db, err := sql.Open("sqlite3", telemetryDB)
	require.NoError(t, err)
	defer db.Close()

	var (
		reason string
		frames int64
	)
	require.NoError(t, db.QueryRow(`SELECT reason, frames FROM runs`).Scan(&reason, &frames))
	assert.Equal(t, "signal", reason)
	assert.Greater(t, frames, int64(1))
}
