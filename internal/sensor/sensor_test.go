package sensor

import (
	"context"
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/num/quat"
)

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"00:06:66:AA:BB:CC", true},
		{"00:06:66:aa:bb:cc", true},
		{"00-06-66-AA-BB-CC", false},
		{"00:06:66:AA:BB", false},
		{"00:06:66:AA:BB:CC:DD", false},
		{"0006.66AA.BBCC", false},
		{"00:06:66:AA:BB:ZZ", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := ParseDeviceID(tt.in)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, DeviceID(tt.in), id)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errors.ErrInvalidDevice, errors.CodeOf(err))
			assert.Contains(t, err.Error(), "Malformed device id")
		})
	}
}

func TestParseDeviceIDs(t *testing.T) {
	_, err := ParseDeviceIDs(nil)
	assert.Equal(t, errors.ErrMissingDevice, errors.CodeOf(err))

	ids, err := ParseDeviceIDs([]string{"00:06:66:AA:BB:CC", "00:06:66:AA:BB:CD"})
	require.NoError(t, err)
	assert.Equal(t, []DeviceID{"00:06:66:AA:BB:CC", "00:06:66:AA:BB:CD"}, ids)
}

func TestNewDriver(t *testing.T) {
	d, err := NewDriver(DriverSimulated, clock.NewMock(), Options{SimRate: 100})
	require.NoError(t, err)
	assert.IsType(t, &Simulated{}, d)

	_, err = NewDriver("lpms-b2", nil, Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrUnknownDriver, errors.CodeOf(err))
}

func TestSimulatedConnectAndData(t *testing.T) {
	clk := clock.NewMock()
	d := NewSimulated(clk, 100, 2*time.Second)

	h, err := d.Attach(context.Background(), "00:06:66:AA:BB:CC")
	require.NoError(t, err)
	assert.Equal(t, DeviceID("00:06:66:AA:BB:CC"), h.ID())
	assert.Equal(t, StatusConnecting, h.ConnectionStatus())
	assert.False(t, h.HasIMUData())

	clk.Add(2 * time.Second)
	assert.Equal(t, StatusConnected, h.ConnectionStatus())
	require.True(t, h.HasIMUData())

	first := h.CurrentData()
	assert.Equal(t, quat.Number{Real: 1}, first.Orientation)
	assert.InDelta(t, 0.0, first.Timestamp, 1e-12)
	assert.InDelta(t, standardGravity, first.Acceleration.Z, 1e-12)
	assert.InDelta(t, seaLevelPressure, first.Pressure, 1e-12)
	assert.False(t, h.HasIMUData(), "no new sample until the device produces one")

	clk.Add(15 * time.Millisecond)
	require.True(t, h.HasIMUData())
	second := h.CurrentData()
	assert.InDelta(t, 0.01, second.Timestamp, 1e-12)
	assert.InDelta(t, 1.0, quat.Abs(second.Orientation), 1e-12)
}

func TestSimulatedOrientationRotates(t *testing.T) {
	r := simulatedReading(math.Pi / yawRate)
	assert.InDelta(t, 0.0, r.Orientation.Real, 1e-9)
	assert.InDelta(t, 1.0, r.Orientation.Kmag, 1e-9)
	assert.InDelta(t, math.Pi/yawRate, r.Timestamp, 1e-12)
}

func TestRotate(t *testing.T) {
	q := quat.Exp(quat.Number{Kmag: math.Pi / 4})
	v := rotate(q, r3.Vector{X: 1})
	assert.InDelta(t, 0.0, v.X, 1e-9)
	assert.InDelta(t, 1.0, v.Y, 1e-9)
	assert.InDelta(t, 0.0, v.Z, 1e-9)
}

func TestSimulatedAttachErrors(t *testing.T) {
	d := NewSimulated(clock.NewMock(), 100, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Attach(ctx, "00:06:66:AA:BB:CC")
	assert.Equal(t, errors.ErrSensorAttach, errors.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = d.Attach(context.Background(), "00:06:66:AA:BB:CC")
	require.NoError(t, err)
	_, err = d.Attach(context.Background(), "00:06:66:AA:BB:CC")
	assert.Equal(t, errors.ErrSensorAttach, errors.CodeOf(err))

	_, err = NewSimulated(clock.NewMock(), 0, 0).Attach(context.Background(), "00:06:66:AA:BB:CC")
	assert.Equal(t, errors.ErrSensorAttach, errors.CodeOf(err))
}

func TestSimulatedDetach(t *testing.T) {
	d := NewSimulated(clock.NewMock(), 100, 0)
	h, err := d.Attach(context.Background(), "00:06:66:AA:BB:CC")
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, h.ConnectionStatus())

	require.NoError(t, d.Detach(h))
	assert.Equal(t, StatusFailed, h.ConnectionStatus())
	assert.False(t, h.HasIMUData())

	err = d.Detach(h)
	assert.Equal(t, errors.ErrSensorDetach, errors.CodeOf(err))
}

type fakeHandle struct {
	id DeviceID
}

func (f *fakeHandle) ID() DeviceID                       { return f.id }
func (f *fakeHandle) ConnectionStatus() ConnectionStatus { return StatusConnected }
func (f *fakeHandle) HasIMUData() bool                   { return false }
func (f *fakeHandle) CurrentData() Reading               { return Reading{} }

type fakeDriver struct {
	failAttach DeviceID
	failDetach bool
	detached   []DeviceID
}

func (f *fakeDriver) Attach(_ context.Context, id DeviceID) (Handle, error) {
	if id == f.failAttach {
		return nil, errors.New().WithData(errors.ErrSensorAttach, id.String())
	}
	return &fakeHandle{id: id}, nil
}

func (f *fakeDriver) Detach(h Handle) error {
	if f.failDetach {
		return errors.New().WithData(errors.ErrSensorDetach, h.ID().String())
	}
	f.detached = append(f.detached, h.ID())
	return nil
}

func TestAttachAll(t *testing.T) {
	ids := []DeviceID{"00:06:66:AA:BB:01", "00:06:66:AA:BB:02", "00:06:66:AA:BB:03"}

	d := &fakeDriver{}
	handles, err := AttachAll(context.Background(), d, ids)
	require.NoError(t, err)
	require.Len(t, handles, 3)
	for i, h := range handles {
		assert.Equal(t, ids[i], h.ID(), "handles keep attach order")
	}

	d = &fakeDriver{failAttach: ids[2]}
	_, err = AttachAll(context.Background(), d, ids)
	require.Error(t, err)
	assert.Equal(t, errors.ErrSensorAttach, errors.CodeOf(err))
	assert.Equal(t, ids[:2], d.detached)
}

func TestDetachAllCombinesErrors(t *testing.T) {
	d := &fakeDriver{failDetach: true}
	handles := []Handle{&fakeHandle{id: "00:06:66:AA:BB:01"}, &fakeHandle{id: "00:06:66:AA:BB:02"}}

	err := DetachAll(d, handles)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.True(t, errors.HasCode(err, errors.ErrSensorDetach))
}
