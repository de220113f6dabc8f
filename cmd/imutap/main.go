// Command imutap stands in for the message bus: it accepts producer
// connections on the bus address and logs the records it receives.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/imuproducer/internal/config"
	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/framing"
	"codeberg.org/mutker/imuproducer/internal/logger"
	"codeberg.org/mutker/imuproducer/internal/record"
	"codeberg.org/mutker/imuproducer/internal/transport"
	"github.com/spf13/pflag"
)

type options struct {
	network  string
	socket   string
	logLevel string
	logEvery int
	maxFrame uint32
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		cancel()
	}()

	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

func parseFlags(args []string) (options, error) {
	var o options

	fs := pflag.NewFlagSet("imutap", pflag.ContinueOnError)
	fs.StringVar(&o.network, "network", config.DefaultNetwork, "Bus network (unix, tcp)")
	fs.StringVar(&o.socket, "socket", config.DefaultSocket, "Bus address to listen on")
	fs.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.IntVar(&o.logEvery, "log-every", config.DefaultLogEvery, "Records per sensor between summary lines")
	fs.Uint32Var(&o.maxFrame, "max-frame", framing.DefaultMaxFrameSize, "Largest accepted payload in bytes")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.logEvery <= 0 {
		return o, errors.New().WithData(errors.ErrInvalidConfig, "log-every must be positive")
	}

	return o, nil
}

func run(ctx context.Context, args []string) int {
	o, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "imutap: %v\n", err)
		return 2
	}

	level, err := logger.ParseLevel(o.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "imutap: %v\n", err)
		return 2
	}
	logger.Init(logger.Options{Level: level, IsService: logger.IsService()})

	l, err := transport.Listen(ctx, o.network, o.socket)
	if err != nil {
		logger.Error().Err(err).Msg("")
		return 1
	}

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	logger.Info().Str("socket", o.socket).Msg("Waiting for producer")

	if err := serve(ctx, l, o); err != nil {
		logger.Error().Err(err).Msg("")
		return 1
	}

	return 0
}

// serve handles one producer connection at a time until the listener closes.
func serve(ctx context.Context, l net.Listener, o options) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.New().Wrap(errors.ErrListen, err)
		}

		logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Producer connected")
		n, err := consume(conn, o)
		conn.Close()

		event := logger.Info()
		if err != nil {
			event = logger.Warn()
			event.Err(err)
		}
		event.Uint64("frames", n).Msg("Producer disconnected")
	}
}

// consume reads frames from r until the stream ends and returns the number of
// frames read. Frames that do not decode are logged and skipped.
func consume(r io.Reader, o options) (uint64, error) {
	fr := framing.NewReader(r, o.maxFrame)
	counts := map[int]int{}

	var total uint64
	for {
		payload, err := fr.ReadFrame()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}

		total++

		rec, err := record.Decode(payload)
		if err != nil {
			logger.Warn().Err(err).Bytes("payload", payload).Msg("Skipping undecodable record")
			continue
		}

		logger.Debug().Int("iid", rec.IID).RawJSON("record", payload).Msg("")

		counts[rec.IID]++
		if counts[rec.IID] >= o.logEvery {
			counts[rec.IID] = 0
			d := rec.Data
			logger.Info().
				Int("iid", rec.IID).
				Float64("timestamp", d.Timestamp).
				Floats64("quat", d.Quat[:]).
				Floats64("acc", d.Acc[:]).
				Float64("bar", d.Bar).
				Msg("Record")
		}
	}
}
