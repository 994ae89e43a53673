package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	_ "modernc.org/sqlite"

	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
)

const (
	FileName = "seen_blocks.db"

	createTableSQL = `CREATE TABLE IF NOT EXISTS seen_blocks (height INTEGER PRIMARY KEY)`
	hasSQL         = `SELECT 1 FROM seen_blocks WHERE height = ?`
	markSQL        = `INSERT OR IGNORE INTO seen_blocks (height) VALUES (?)`
)

// SQLiteStore keeps published heights in a single-table SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	log       applog.AppLogger
	path      string
	closeOnce sync.Once
	closeErr  error
}

var _ port.SeenStore = (*SQLiteStore)(nil)

// OpenSQLite creates the data directory, the database file and the table when
// absent. Any failure here is fatal for the caller.
func OpenSQLite(ctx context.Context, log applog.AppLogger, cfg SQLiteConfig, v *validator.Validate) (*SQLiteStore, error) {
	if err := v.Struct(cfg); err != nil {
		return nil, apperr.NewInvalidArgErr("invalid sqlite store config", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, apperr.NewBlockStoreErr("failed to create data directory "+cfg.DataDir, err)
	}

	path := filepath.Join(cfg.DataDir, FileName)
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperr.NewBlockStoreErr("failed to open "+path, err)
	}
	// One writer, one goroutine; a single connection also keeps the file lock simple.
	db.SetMaxOpenConns(1)

	s := newSQLiteStore(log, db, path)
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("Seen-height store ready", "driver", DriverSQLite, "path", path)
	return s, nil
}

func newSQLiteStore(log applog.AppLogger, db *sql.DB, path string) *SQLiteStore {
	return &SQLiteStore{db: db, log: log, path: path}
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return apperr.NewBlockStoreErr("failed to create seen_blocks table", err)
	}
	return nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Has(ctx context.Context, height int64) (bool, error) {
	if height < 0 {
		return false, apperr.NewInvalidArgErr("height must be non-negative", nil)
	}
	var one int
	err := s.db.QueryRowContext(ctx, hasSQL, height).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, apperr.NewBlockStoreErr("failed to query seen height", err)
	}
	return true, nil
}

// Mark records height. Marking a height twice is a no-op.
func (s *SQLiteStore) Mark(ctx context.Context, height int64) error {
	if height < 0 {
		return apperr.NewInvalidArgErr("height must be non-negative", nil)
	}
	res, err := s.db.ExecContext(ctx, markSQL, height)
	if err != nil {
		return apperr.NewBlockStoreErr("failed to mark seen height", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.Trace("Height already marked", "height", height)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		if err := s.db.Close(); err != nil {
			s.closeErr = apperr.NewBlockStoreErr("failed to close sqlite store", err)
		}
	})
	return s.closeErr
}
