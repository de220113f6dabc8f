package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

const createRunsSQL = `
    CREATE TABLE IF NOT EXISTS runs (
        run_id     TEXT PRIMARY KEY,
        started_at INTEGER NOT NULL,
        stopped_at INTEGER,
        network    TEXT NOT NULL,
        socket     TEXT NOT NULL,
        frequency  REAL NOT NULL,
        devices    TEXT NOT NULL,
        frames     INTEGER NOT NULL DEFAULT 0,
        bytes      INTEGER NOT NULL DEFAULT 0,
        reason     TEXT
    )`

// Repository stores run rows.
type Repository interface {
	Insert(ctx context.Context, run *Run) error
	Update(ctx context.Context, runID string, result *Result) error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRepository opens the run ledger at cfg.DBPath and creates its table.
func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Msgf("Initializing telemetry repository at: %s", cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if _, err := db.Exec(createRunsSQL); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	return &sqliteRepository{
		db: db,
	}, nil
}

func (r *sqliteRepository) Insert(ctx context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO runs (run_id, started_at, network, socket, frequency, devices)
        VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UnixNano(),
		run.Network,
		run.Socket,
		run.Frequency,
		strings.Join(run.Devices, ","),
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Update(ctx context.Context, runID string, result *Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `
        UPDATE runs SET stopped_at = ?, frames = ?, bytes = ?, reason = ?
        WHERE run_id = ?`,
		result.StoppedAt.UnixNano(),
		int64(result.Frames),
		int64(result.Bytes),
		result.Reason,
		runID,
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New().WithData(ErrRunNotFound, runID)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}
