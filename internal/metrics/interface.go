package metrics

import (
	"context"
	"time"

	"gonum.org/v1/gonum/num/quat"
)

// Collector stores diagnostic snapshots taken by the poll loop
type Collector interface {
	Record(ctx context.Context, snapshot *SampleSnapshot) error
	Close() error
}

// Repository defines the interface for snapshot storage
type Repository interface {
	Record(snapshot *SampleSnapshot) error
	Close() error
}

// SampleSnapshot is the state of one sensor at a diagnostic sample
type SampleSnapshot struct {
	RunID           string
	SensorIndex     int
	DeviceID        string
	Timestamp       time.Time
	Elapsed         time.Duration
	RateHz          float64
	DeviceTimestamp float64
	Orientation     quat.Number
}
