package sensor

import (
	"context"
	"time"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/logger"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

const DriverSimulated = "simulated"

// Options tunes the built-in drivers
type Options struct {
	SimRate         float64
	SimConnectDelay time.Duration
}

// NewDriver returns the driver registered under name.
func NewDriver(name string, clk clock.Clock, opts Options) (Driver, error) {
	if clk == nil {
		clk = clock.New()
	}

	switch name {
	case DriverSimulated:
		return NewSimulated(clk, opts.SimRate, opts.SimConnectDelay), nil
	default:
		return nil, errors.New().WithData(errors.ErrUnknownDriver, name)
	}
}

// AttachAll attaches ids in order. On failure the handles attached so far
// are detached again.
func AttachAll(ctx context.Context, d Driver, ids []DeviceID) ([]Handle, error) {
	handles := make([]Handle, 0, len(ids))
	for _, id := range ids {
		h, err := d.Attach(ctx, id)
		if err != nil {
			return nil, multierr.Append(err, DetachAll(d, handles))
		}
		logger.Debug().Str("device", id.String()).Msg("Sensor attached")
		handles = append(handles, h)
	}

	return handles, nil
}

// DetachAll detaches every handle and combines the errors.
func DetachAll(d Driver, handles []Handle) error {
	var err error
	for _, h := range handles {
		if detachErr := d.Detach(h); detachErr != nil {
			err = multierr.Append(err, detachErr)
			continue
		}
		logger.Debug().Str("device", h.ID().String()).Msg("Sensor detached")
	}

	return err
}
