// Package poller drives the sampling pipeline: it visits every attached
// sensor in attach order, encodes due readings and hands them to a frame
// sink.
package poller

import (
	"context"
	"time"

	"codeberg.org/mutker/imuproducer/internal/logger"
	"codeberg.org/mutker/imuproducer/internal/metrics"
	"codeberg.org/mutker/imuproducer/internal/record"
	"codeberg.org/mutker/imuproducer/internal/sampling"
	"codeberg.org/mutker/imuproducer/internal/sensor"
	"github.com/benbjohnson/clock"
)

const (
	DefaultLogEvery    = 100
	DefaultIdleTick    = time.Millisecond
	DefaultConnectPoll = time.Second
)

// Config holds the pacing settings of a Poller.
type Config struct {
	Frequency   float64
	LogEvery    int
	IdleTick    time.Duration
	ConnectPoll time.Duration
}

// FrameSink delivers one encoded record. An error is fatal to the loop.
type FrameSink interface {
	WriteFrame(payload []byte) error
}

// Session is the poll loop's state for one sensor. Index is the sensor's
// attach position and is written into every record as iid.
type Session struct {
	Index  int
	Handle sensor.Handle
	Clock  *sampling.SampleClock
}

// Poller drives every sensor session round-robin and writes accepted samples
// to a FrameSink.
type Poller struct {
	cfg       Config
	sessions  []*Session
	sink      FrameSink
	clk       clock.Clock
	collector metrics.Collector
	runID     string
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(p *Poller) {
		p.clk = clk
	}
}

// WithMetrics stores a snapshot with every diagnostic line.
func WithMetrics(c metrics.Collector) Option {
	return func(p *Poller) {
		p.collector = c
	}
}

// WithRunID tags metrics snapshots with the producer run.
func WithRunID(id string) Option {
	return func(p *Poller) {
		p.runID = id
	}
}

// New creates a poller over handles. Sessions are indexed in handle order.
func New(cfg Config, handles []sensor.Handle, sink FrameSink, opts ...Option) *Poller {
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = DefaultLogEvery
	}
	if cfg.ConnectPoll <= 0 {
		cfg.ConnectPoll = DefaultConnectPoll
	}

	p := &Poller{
		cfg:       cfg,
		sink:      sink,
		clk:       clock.New(),
		collector: metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	now := p.clk.Now()
	p.sessions = make([]*Session, len(handles))
	for i, h := range handles {
		p.sessions[i] = &Session{
			Index:  i,
			Handle: h,
			Clock:  sampling.NewSampleClock(cfg.Frequency, cfg.LogEvery, now),
		}
	}

	return p
}

// Sessions returns the sessions in attach order.
func (p *Poller) Sessions() []*Session {
	return p.sessions
}

// WaitConnected blocks until every sensor reports connected, checking each
// one in order every ConnectPoll. A sensor's sample clock starts when it is
// found connected.
func (p *Poller) WaitConnected(ctx context.Context) error {
	n := len(p.sessions)
	for _, s := range p.sessions {
		for s.Handle.ConnectionStatus() != sensor.StatusConnected {
			logger.Info().Msgf("Waiting for sensor %d/%d (%s)", s.Index+1, n, s.Handle.ID())

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clk.After(p.cfg.ConnectPoll):
			}
		}

		s.Clock = sampling.NewSampleClock(p.cfg.Frequency, p.cfg.LogEvery, p.clk.Now())
		logger.Info().Msgf("Sensor %d/%d connected (%s)", s.Index+1, n, s.Handle.ID())
	}

	return nil
}

// Poll visits every sensor once. It returns the sink's error, after which
// the stream must not be used again.
func (p *Poller) Poll(ctx context.Context) error {
	for _, s := range p.sessions {
		if s.Handle.ConnectionStatus() != sensor.StatusConnected || !s.Handle.HasIMUData() {
			continue
		}

		now := p.clk.Now()
		if !s.Clock.IsDue(now) {
			continue
		}

		reading := s.Handle.CurrentData()
		if err := p.sink.WriteFrame(record.Encode(s.Index, reading)); err != nil {
			return err
		}

		if s.Clock.Accept(now) {
			p.diagnose(ctx, s, reading)
		}
	}

	return nil
}

// Run waits for the sensors and then polls them, pausing IdleTick between
// rounds, until ctx is cancelled or a frame cannot be written.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.WaitConnected(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	logger.Info().
		Int("sensors", len(p.sessions)).
		Float64("frequency", p.cfg.Frequency).
		Msg("Sampling started")

	for {
		if err := p.Poll(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-p.clk.After(p.cfg.IdleTick):
		}
	}
}

func (p *Poller) diagnose(ctx context.Context, s *Session, r sensor.Reading) {
	interval := s.Clock.Interval()
	elapsedMs := float64(interval) / float64(time.Millisecond)

	var rate float64
	if interval > 0 {
		rate = float64(time.Second) / float64(interval)
	}

	q := r.Orientation
	logger.Info().
		Int("iid", s.Index).
		Float64("elapsed_ms", elapsedMs).
		Float64("rate_hz", rate).
		Float64("timestamp", r.Timestamp).
		Floats64("quat", []float64{q.Real, q.Imag, q.Jmag, q.Kmag}).
		Msg("Sample")

	snapshot := &metrics.SampleSnapshot{
		RunID:           p.runID,
		SensorIndex:     s.Index,
		DeviceID:        s.Handle.ID().String(),
		Timestamp:       s.Clock.Last(),
		Elapsed:         interval,
		RateHz:          rate,
		DeviceTimestamp: r.Timestamp,
		Orientation:     q,
	}
	if err := p.collector.Record(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Int("iid", s.Index).Msg("Failed to record metrics snapshot")
	}
}
