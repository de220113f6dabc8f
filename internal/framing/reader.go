package framing

import (
	"encoding/binary"
	"io"

	"codeberg.org/mutker/imuproducer/internal/errors"
)

// DefaultMaxFrameSize bounds the payload a Reader accepts.
const DefaultMaxFrameSize = 1 << 20

// Reader reads frames from a stream.
type Reader struct {
	r       io.Reader
	maxSize uint32
}

// NewReader returns a Reader that rejects payloads above maxSize bytes. A
// zero maxSize means DefaultMaxFrameSize.
func NewReader(r io.Reader, maxSize uint32) *Reader {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}

	return &Reader{r: r, maxSize: maxSize}
}

// ReadFrame returns the next payload. It returns io.EOF when the stream ends
// cleanly between two frames.
func (r *Reader) ReadFrame() ([]byte, error) {
	errFactory := errors.New()

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errFactory.Wrap(errors.ErrTransportRead, err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > r.maxSize {
		return nil, errFactory.WithData(errors.ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errFactory.Wrap(errors.ErrTransportRead, err)
	}

	return payload, nil
}
