// Package framing implements the length-prefixed wire format: a 4 byte
// big-endian payload length followed by the payload.
package framing

import (
	"encoding/binary"
	"io"
	"math"

	"codeberg.org/mutker/imuproducer/internal/errors"
)

// HeaderSize is the length of the big-endian payload length prefix.
const HeaderSize = 4

// Stats counts what a Writer has delivered. Bytes includes headers.
type Stats struct {
	Frames uint64
	Bytes  uint64
}

// Writer writes frames to a connected stream. A write error leaves the
// stream in an unknown state and must be treated as fatal.
type Writer struct {
	w     io.Writer
	stats Stats
}

// NewWriter returns a Writer that frames payloads onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame sends payload as one frame. An empty payload is not sent.
func (w *Writer) WriteFrame(payload []byte) error {
	errFactory := errors.New()

	if len(payload) == 0 {
		return nil
	}

	if uint64(len(payload)) > math.MaxUint32 {
		return errFactory.WithData(errors.ErrFrameTooLarge, len(payload))
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if err := writeFull(w.w, header[:]); err != nil {
		return errFactory.Wrap(errors.ErrTransportWrite, err)
	}

	if err := writeFull(w.w, payload); err != nil {
		return errFactory.Wrap(errors.ErrTransportWrite, err)
	}

	w.stats.Frames++
	w.stats.Bytes += uint64(HeaderSize + len(payload))

	return nil
}

// Stats returns the counters accumulated so far.
func (w *Writer) Stats() Stats {
	return w.stats
}

// writeFull writes all of b, continuing after short writes. The first error
// is returned as is.
func writeFull(w io.Writer, b []byte) error {
	for sent := 0; sent < len(b); {
		n, err := w.Write(b[sent:])
		sent += n
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrNoProgress
		}
	}

	return nil
}
