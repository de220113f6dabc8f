// Package record renders sensor readings into the textual record carried in
// each frame, and parses them back on the consumer side.
package record

import (
	"strconv"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/sensor"
	"github.com/goccy/go-json"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// StreamID is the value of the id field. It is reserved for multi-stream
// identification and always zero.
const StreamID = 0

// sizeHint covers a typical record so Encode allocates once.
const sizeHint = 320

// Record is the decoded form of one payload.
type Record struct {
	ID   int  `json:"id"`
	IID  int  `json:"iid"`
	Data Data `json:"data"`
}

// Data holds the sensor fields of a record.
type Data struct {
	Quat      [4]float64 `json:"quat"`
	Offset    [4]float64 `json:"offset"`
	Acc       [3]float64 `json:"acc"`
	Mag       [3]float64 `json:"mag"`
	Gyr       [3]float64 `json:"gyr"`
	Bar       float64    `json:"bar"`
	Timestamp float64    `json:"timestamp"`
}

// Encode renders r for the sensor at index. Numbers use fixed notation with
// six decimals. The offset field is always four zeros. Encode does not
// validate its input; NaN and Inf are written as Go formats them.
func Encode(index int, r sensor.Reading) []byte {
	b := make([]byte, 0, sizeHint)

	b = append(b, `{"id": `...)
	b = strconv.AppendInt(b, StreamID, 10)
	b = append(b, `, "iid": `...)
	b = strconv.AppendInt(b, int64(index), 10)

	b = append(b, `, "data": { "quat": `...)
	q := r.Orientation
	b = appendArray(b, q.Real, q.Imag, q.Jmag, q.Kmag)
	b = append(b, `, "offset": `...)
	b = appendArray(b, 0, 0, 0, 0)
	b = append(b, `, "acc": `...)
	b = appendVector(b, r.Acceleration)
	b = append(b, `, "mag": `...)
	b = appendVector(b, r.MagneticField)
	b = append(b, `, "gyr": `...)
	b = appendVector(b, r.AngularRate)
	b = append(b, `, "bar": `...)
	b = appendFloat(b, r.Pressure)
	b = append(b, `, "timestamp": `...)
	b = appendFloat(b, r.Timestamp)
	b = append(b, ` }}`...)

	return b
}

func appendVector(b []byte, v r3.Vector) []byte {
	return appendArray(b, v.X, v.Y, v.Z)
}

func appendArray(b []byte, vs ...float64) []byte {
	b = append(b, '[')
	for i, v := range vs {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = appendFloat(b, v)
	}

	return append(b, ']')
}

func appendFloat(b []byte, v float64) []byte {
	return strconv.AppendFloat(b, v, 'f', 6, 64)
}

// Decode parses one payload.
func Decode(payload []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, errors.New().Wrap(errors.ErrDecodeRecord, err)
	}

	return rec, nil
}

// Reading converts the record data back into a sensor reading.
func (r Record) Reading() sensor.Reading {
	d := r.Data
	return sensor.Reading{
		Orientation:   quat.Number{Real: d.Quat[0], Imag: d.Quat[1], Jmag: d.Quat[2], Kmag: d.Quat[3]},
		Acceleration:  r3.Vector{X: d.Acc[0], Y: d.Acc[1], Z: d.Acc[2]},
		MagneticField: r3.Vector{X: d.Mag[0], Y: d.Mag[1], Z: d.Mag[2]},
		AngularRate:   r3.Vector{X: d.Gyr[0], Y: d.Gyr[1], Z: d.Gyr[2]},
		Pressure:      d.Bar,
		Timestamp:     d.Timestamp,
	}
}
