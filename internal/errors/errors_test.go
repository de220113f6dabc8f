package errors_test

import (
	"fmt"
	"io"
	"testing"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrConnect)
	assert.Equal(t, "Failed to connect to message bus", err.Error())

	wrapped := errFactory.Wrap(errors.ErrTransportWrite, io.ErrClosedPipe)
	assert.Equal(t, "Failed to write frame: io: read/write on closed pipe", wrapped.Error())
	assert.ErrorIs(t, wrapped, io.ErrClosedPipe)

	withData := errFactory.WithData(errors.ErrInvalidDevice, "00:06:66")
	assert.Equal(t, "Malformed device id: 00:06:66", withData.Error())
	assert.Equal(t, "00:06:66", withData.GetData())

	custom := errFactory.WithMessage(errors.ErrInvalidConfig, "frequency must be positive")
	assert.Equal(t, "frequency must be positive", custom.Error())
}

func TestUnknownCodeMessage(t *testing.T) {
	err := errors.New().New(errors.ErrorCode("something_else"))
	assert.Equal(t, "something_else", err.Error())
}

func TestEveryCodeHasMessage(t *testing.T) {
	codes := []errors.ErrorCode{
		errors.ErrInternal, errors.ErrInvalidConfig, errors.ErrBindFlags,
		errors.ErrParseFlags, errors.ErrReadConfig, errors.ErrInvalidFrequency,
		errors.ErrMissingDevice, errors.ErrInvalidDevice, errors.ErrInvalidLogLevel,
		errors.ErrAlreadyRunning, errors.ErrConnect, errors.ErrListen,
		errors.ErrTransportWrite, errors.ErrTransportRead, errors.ErrFrameTooLarge,
		errors.ErrUnknownDriver, errors.ErrSensorAttach, errors.ErrSensorDetach,
		errors.ErrDecodeRecord, errors.ErrTimeout, errors.ErrInitMetrics,
		errors.ErrCollectMetrics, errors.ErrCloseMetrics, errors.ErrInitTelemetry,
	}

	for _, code := range codes {
		assert.NotEqual(t, string(code), errors.GetErrorMessage(code), "code %s", code)
	}
}

func TestCodeOf(t *testing.T) {
	inner := errors.New().Wrap(errors.ErrTransportWrite, io.ErrShortWrite)
	outer := fmt.Errorf("poll sensor 0: %w", inner)

	assert.Equal(t, errors.ErrTransportWrite, errors.CodeOf(outer))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(io.EOF))
}

func TestHasCode(t *testing.T) {
	inner := errors.New().New(errors.ErrMissingDevice)
	outer := errors.New().Wrap(errors.ErrInvalidConfig, inner)

	require.True(t, errors.HasCode(outer, errors.ErrInvalidConfig))
	require.True(t, errors.HasCode(outer, errors.ErrMissingDevice))
	require.False(t, errors.HasCode(outer, errors.ErrConnect))
	require.False(t, errors.HasCode(nil, errors.ErrConnect))
}
