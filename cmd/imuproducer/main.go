package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/imuproducer/internal/config"
	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/framing"
	"codeberg.org/mutker/imuproducer/internal/logger"
	"codeberg.org/mutker/imuproducer/internal/metrics"
	"codeberg.org/mutker/imuproducer/internal/pid"
	"codeberg.org/mutker/imuproducer/internal/poller"
	"codeberg.org/mutker/imuproducer/internal/sensor"
	"codeberg.org/mutker/imuproducer/internal/telemetry"
	"codeberg.org/mutker/imuproducer/internal/transport"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// app holds everything cleanup has to release.
type app struct {
	cfg       config.Provider
	runID     string
	clk       clock.Clock
	collector metrics.Collector
	ledger    telemetry.Ledger
	conn      net.Conn
	frames    *framing.Writer
	driver    sensor.Driver
	handles   []sensor.Handle
	pidFile   bool
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

// run returns the process exit code. Cancelling ctx stops sampling and is an
// orderly shutdown.
func run(ctx context.Context, args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitConfig
	}

	level, err := logger.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitConfig
	}
	logger.Init(logger.Options{Level: level, IsService: logger.IsService(), File: cfg.GetLogFile()})
	logger.Debug().Msg("Config loaded")

	a := &app{cfg: cfg, runID: uuid.NewString(), clk: clock.New()}
	defer a.cleanup()

	if err := a.init(ctx); err != nil {
		logError(err, "init")
		return exitRuntime
	}

	if err := a.loop(ctx); err != nil {
		logError(err, "main_loop")
		a.finish("error: " + string(errors.CodeOf(err)))
		return exitRuntime
	}

	a.finish("signal")

	return exitOK
}

func (a *app) init(ctx context.Context) error {
	errFactory := errors.New()
	cfg := a.cfg

	if err := pid.Write(cfg.GetPIDFile()); err != nil {
		return err
	}
	a.pidFile = true

	var err error
	a.collector, err = metrics.NewService(metrics.Config{
		DBPath:       cfg.GetMetricsDBPath(),
		BatchSize:    cfg.GetMetricsBatchSize(),
		BatchTimeout: cfg.GetMetricsBatchTimeout(),
		Enabled:      cfg.IsMetricsEnabled(),
	}, logger.Default())
	if err != nil {
		return errFactory.Wrap(errors.ErrInitMetrics, err)
	}

	a.ledger, err = telemetry.NewService(telemetry.Config{DBPath: cfg.GetTelemetryDBPath(), Enabled: cfg.IsTelemetryEnabled()})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitTelemetry, err)
	}

	ids, err := sensor.ParseDeviceIDs(cfg.GetDevices())
	if err != nil {
		return err
	}

	a.conn, err = transport.Dial(ctx, cfg.GetNetwork(), cfg.GetSocket())
	if err != nil {
		return err
	}
	a.frames = framing.NewWriter(a.conn)

	a.driver, err = sensor.NewDriver(cfg.GetDriver(), a.clk, sensor.Options{
		SimRate:         cfg.GetSimRate(),
		SimConnectDelay: cfg.GetSimConnectDelay(),
	})
	if err != nil {
		return err
	}

	a.handles, err = sensor.AttachAll(ctx, a.driver, ids)
	if err != nil {
		return err
	}

	if err := a.ledger.Start(ctx, &telemetry.Run{
		ID:        a.runID,
		StartedAt: a.clk.Now(),
		Network:   cfg.GetNetwork(),
		Socket:    cfg.GetSocket(),
		Frequency: cfg.GetFrequency(),
		Devices:   cfg.GetDevices(),
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run start")
	}

	logger.Info().
		Str("run_id", a.runID).
		Str("socket", cfg.GetSocket()).
		Int("sensors", len(a.handles)).
		Msg("Producer initialized")

	return nil
}

func (a *app) loop(ctx context.Context) error {
	p := poller.New(poller.Config{
		Frequency:   a.cfg.GetFrequency(),
		LogEvery:    a.cfg.GetLogEvery(),
		IdleTick:    a.cfg.GetIdleTick(),
		ConnectPoll: a.cfg.GetConnectPoll(),
	}, a.handles, a.frames,
		poller.WithClock(a.clk),
		poller.WithMetrics(a.collector),
		poller.WithRunID(a.runID),
	)

	return p.Run(ctx)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// finish closes the run ledger row.
func (a *app) finish(reason string) {
	if a.ledger == nil {
		return
	}

	var stats framing.Stats
	if a.frames != nil {
		stats = a.frames.Stats()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.ledger.Finish(ctx, a.runID, &telemetry.Result{
		StoppedAt: a.clk.Now(),
		Frames:    stats.Frames,
		Bytes:     stats.Bytes,
		Reason:    reason,
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run end")
	}

	logger.Info().
		Uint64("frames", stats.Frames).
		Uint64("bytes", stats.Bytes).
		Str("reason", reason).
		Msg("Run finished")
}

func (a *app) cleanup() {
	var err error

	if a.driver != nil {
		err = multierr.Append(err, sensor.DetachAll(a.driver, a.handles))
	}
	if a.conn != nil {
		err = multierr.Append(err, a.conn.Close())
	}
	if a.collector != nil {
		err = multierr.Append(err, a.collector.Close())
	}
	if a.ledger != nil {
		err = multierr.Append(err, a.ledger.Close())
	}
	if a.pidFile {
		err = multierr.Append(err, pid.Remove(a.cfg.GetPIDFile()))
	}

	for _, e := range multierr.Errors(err) {
		logger.Error().Err(e).Msg("Cleanup failed")
	}
	logger.Info().Msg("Exiting...")
}

func logError(err error, operation string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithContext(appErr, "imuproducer", operation).Msg("")
		return
	}
	logger.Error().Err(err).Str("operation", operation).Msg("")
}
