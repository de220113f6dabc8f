package sensor

import (
	"context"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Handle is the narrow view of one attached sensor used by the poll loop
type Handle interface {
	// ID returns the device id the handle was attached with
	ID() DeviceID

	// ConnectionStatus reports the link state to the device
	ConnectionStatus() ConnectionStatus

	// HasIMUData reports whether a reading newer than the last one returned
	// by CurrentData is available
	HasIMUData() bool

	// CurrentData returns the latest reading
	CurrentData() Reading
}

// Driver attaches and detaches sensors
type Driver interface {
	Attach(ctx context.Context, id DeviceID) (Handle, error)
	Detach(h Handle) error
}

// ConnectionStatus is the link state of a sensor
type ConnectionStatus int

const (
	StatusConnecting ConnectionStatus = iota
	StatusConnected
	StatusFailed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reading is one snapshot of sensor measurements. Orientation maps w, x, y, z
// onto Real, Imag, Jmag, Kmag.
type Reading struct {
	Orientation   quat.Number
	Acceleration  r3.Vector
	MagneticField r3.Vector
	AngularRate   r3.Vector
	Pressure      float64
	Timestamp     float64
}
