// Package transport opens the stream connection between the producer and the
// message bus.
package transport

import (
	"context"
	"net"
	"os"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/logger"
)

// Dial connects to the bus at addr. The connection is held for the lifetime
// of the producer and never re-established.
func Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer

	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrConnect, err)
	}

	logger.Debug().Str("network", network).Str("address", addr).Msg("Connected to message bus")

	return conn, nil
}

// Listen opens the bus side of the connection. A stale unix socket left at
// addr by a previous listener is removed first.
func Listen(ctx context.Context, network, addr string) (net.Listener, error) {
	errFactory := errors.New()

	if network == "unix" {
		if err := removeStaleSocket(addr); err != nil {
			return nil, errFactory.Wrap(errors.ErrListen, err)
		}
	}

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrListen, err)
	}

	logger.Debug().Str("network", network).Str("address", l.Addr().String()).Msg("Listening")

	return l, nil
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if fi.Mode()&os.ModeSocket == 0 {
		return &os.PathError{Op: "listen", Path: path, Err: os.ErrExist}
	}

	logger.Debug().Str("path", path).Msg("Removing stale socket")

	return os.Remove(path)
}
