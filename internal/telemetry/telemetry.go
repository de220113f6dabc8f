// Package telemetry keeps a ledger of producer runs: when each started and
// stopped, what it was sending to, and how much it delivered.
package telemetry

import (
	"context"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/logger"
)

type service struct {
	repo Repository
}

type noopLedger struct{}

// NewService returns a sqlite backed ledger, or a no-op ledger when
// telemetry is disabled.
func NewService(cfg Config) (Ledger, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Telemetry disabled, using no-op ledger")
		return &noopLedger{}, nil
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err // Already wrapped with appropriate error
	}

	return &service{repo: repo}, nil
}

func (s *service) Start(ctx context.Context, run *Run) error {
	errFactory := errors.New()

	if run == nil || run.ID == "" {
		return errFactory.New(ErrInvalidRun)
	}

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrOperationTimeout, err)
	}

	return s.repo.Insert(ctx, run)
}

func (s *service) Finish(ctx context.Context, runID string, result *Result) error {
	errFactory := errors.New()

	if runID == "" || result == nil {
		return errFactory.New(ErrInvalidRun)
	}

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrOperationTimeout, err)
	}

	return s.repo.Update(ctx, runID, result)
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (*noopLedger) Start(context.Context, *Run) error {
	return nil
}

func (*noopLedger) Finish(context.Context, string, *Result) error {
	return nil
}

func (*noopLedger) Close() error {
	return nil
}
