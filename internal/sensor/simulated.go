package sensor

import (
	"context"
	"math"
	"sync"
	"time"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const (
	// yawRate is the simulated rotation about the vertical axis in rad/s
	yawRate         = 0.5
	standardGravity = 9.80665
	// seaLevelPressure in kPa, the unit the device reports
	seaLevelPressure = 101.325
)

var earthField = r3.Vector{X: 22.0, Y: 0, Z: -42.0}

// Simulated is a Driver whose sensors produce a slowly rotating orientation
// at a fixed device rate.
type Simulated struct {
	clk          clock.Clock
	rate         float64
	connectDelay time.Duration

	mu       sync.Mutex
	attached map[DeviceID]*simulatedHandle
}

// NewSimulated creates a simulated driver. Attached sensors report connected
// once connectDelay has passed and emit rate samples per second after that.
func NewSimulated(clk clock.Clock, rate float64, connectDelay time.Duration) *Simulated {
	return &Simulated{
		clk:          clk,
		rate:         rate,
		connectDelay: connectDelay,
		attached:     make(map[DeviceID]*simulatedHandle),
	}
}

func (s *Simulated) Attach(ctx context.Context, id DeviceID) (Handle, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrSensorAttach, err)
	}

	if s.rate <= 0 {
		return nil, errFactory.WithData(errors.ErrSensorAttach, "rate must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attached[id]; ok {
		return nil, errFactory.WithData(errors.ErrSensorAttach, id.String()+" already attached")
	}

	h := &simulatedHandle{
		id:          id,
		clk:         s.clk,
		rate:        s.rate,
		connectedAt: s.clk.Now().Add(s.connectDelay),
		lastSeq:     -1,
	}
	s.attached[id] = h

	return h, nil
}

func (s *Simulated) Detach(h Handle) error {
	errFactory := errors.New()

	sh, ok := h.(*simulatedHandle)
	if !ok {
		return errFactory.WithData(errors.ErrSensorDetach, "not a simulated sensor")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached[sh.id] != sh {
		return errFactory.WithData(errors.ErrSensorDetach, sh.id.String()+" not attached")
	}
	delete(s.attached, sh.id)
	sh.detach()

	return nil
}

type simulatedHandle struct {
	id          DeviceID
	clk         clock.Clock
	rate        float64
	connectedAt time.Time

	mu       sync.Mutex
	lastSeq  int64
	detached bool
}

func (h *simulatedHandle) ID() DeviceID {
	return h.id
}

func (h *simulatedHandle) ConnectionStatus() ConnectionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.status(h.clk.Now())
}

func (h *simulatedHandle) status(now time.Time) ConnectionStatus {
	switch {
	case h.detached:
		return StatusFailed
	case now.Before(h.connectedAt):
		return StatusConnecting
	default:
		return StatusConnected
	}
}

// seq is the index of the newest device sample at now.
func (h *simulatedHandle) seq(now time.Time) int64 {
	return int64(math.Floor(now.Sub(h.connectedAt).Seconds() * h.rate))
}

func (h *simulatedHandle) HasIMUData() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clk.Now()
	if h.status(now) != StatusConnected {
		return false
	}

	return h.seq(now) > h.lastSeq
}

func (h *simulatedHandle) CurrentData() Reading {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clk.Now()
	if h.status(now) == StatusConnected {
		h.lastSeq = h.seq(now)
	}
	if h.lastSeq < 0 {
		return Reading{Orientation: quat.Number{Real: 1}}
	}

	return simulatedReading(float64(h.lastSeq) / h.rate)
}

func (h *simulatedHandle) detach() {
	h.mu.Lock()
	h.detached = true
	h.mu.Unlock()
}

// simulatedReading is the state of a sensor yawing at yawRate, t seconds
// after it connected.
func simulatedReading(t float64) Reading {
	yaw := yawRate * t
	q := quat.Exp(quat.Number{Kmag: yaw / 2})

	return Reading{
		Orientation:   q,
		Acceleration:  r3.Vector{Z: standardGravity},
		MagneticField: rotate(quat.Conj(q), earthField),
		AngularRate:   r3.Vector{Z: yawRate * 180 / math.Pi},
		Pressure:      seaLevelPressure,
		Timestamp:     t,
	}
}

// rotate applies the unit quaternion q to v.
func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}
