package main

import (
	"bytes"
	"context"
	"math"
	"net"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/framing"
	"codeberg.org/mutker/imuproducer/internal/record"
	"codeberg.org/mutker/imuproducer/internal/sensor"
	"codeberg.org/mutker/imuproducer/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "unix", o.network)
	assert.Equal(t, "/tmp/sensor_producer", o.socket)
	assert.Equal(t, 100, o.logEvery)
	assert.Equal(t, uint32(framing.DefaultMaxFrameSize), o.maxFrame)

	_, err = parseFlags([]string{"--log-every", "0"})
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}

func TestConsume(t *testing.T) {
	var buf bytes.Buffer
	w := framing.NewWriter(&buf)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteFrame(record.Encode(i%2, sensor.Reading{Orientation: quat.Number{Real: 1}})))
	}

	n, err := consume(&buf, options{logEvery: 2, maxFrame: framing.DefaultMaxFrameSize})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}

func TestConsumeMalformedRecord(t *testing.T) {
	var buf bytes.Buffer
	w := framing.NewWriter(&buf)
	require.NoError(t, w.WriteFrame(record.Encode(0, sensor.Reading{})))
	require.NoError(t, w.WriteFrame([]byte("not a record")))

	n, err := consume(&buf, options{logEvery: 100, maxFrame: framing.DefaultMaxFrameSize})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestConsumeSkipsNonFiniteRecord(t *testing.T) {
	var buf bytes.Buffer
	w := framing.NewWriter(&buf)
	require.NoError(t, w.WriteFrame(record.Encode(0, sensor.Reading{Pressure: math.NaN()})))
	require.NoError(t, w.WriteFrame(record.Encode(1, sensor.Reading{Pressure: 1013.25})))

	n, err := consume(&buf, options{logEvery: 1, maxFrame: framing.DefaultMaxFrameSize})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestServeStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.sock")
	ctx, cancel := context.WithCancel(context.Background())

	l, err := transport.Listen(ctx, "unix", path)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, l, options{logEvery: 100, maxFrame: framing.DefaultMaxFrameSize})
	}()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	require.NoError(t, framing.NewWriter(conn).WriteFrame(record.Encode(0, sensor.Reading{})))
	require.NoError(t, conn.Close())

	cancel()
	require.NoError(t, l.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}
