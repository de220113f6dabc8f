package telemetry

import (
	"context"
	"time"
)

// Ledger records one row per producer run
type Ledger interface {
	Start(ctx context.Context, run *Run) error
	Finish(ctx context.Context, runID string, result *Result) error
	Close() error
}

// Run describes a producer run when it starts
type Run struct {
	ID        string
	StartedAt time.Time
	Network   string
	Socket    string
	Frequency float64
	Devices   []string
}

// Result describes how a run ended
type Result struct {
	StoppedAt time.Time
	Frames    uint64
	Bytes     uint64
	Reason    string
}
