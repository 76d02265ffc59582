package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Leantar/fdi/models"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var ErrLocked = errors.New("cache is in use by another process")

const schema = `CREATE TABLE IF NOT EXISTS fingerprints (
	key         TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	fingerprint BLOB NOT NULL,
	updated_at  INTEGER NOT NULL
)`

// SQLite persists fingerprints between runs. Only one process may hold the database
// at a time.
type SQLite struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite cache requires a path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock cache: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	// Pragmas go into the DSN so every pooled connection gets them
	dsn := "file:" + path + "?" + strings.Join([]string{
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
	}, "&")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// SQLite allows a single writer; one connection serializes workers instead of
	// letting them fail with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("opened fingerprint cache")

	return &SQLite{db: db, lock: lock, path: path}, nil
}

// Get marks a hit as used, so Prune keeps entries that are still looked up.
func (s *SQLite) Get(ctx context.Context, key string) (models.Fingerprint, bool, error) {
	var fp []byte

	err := s.db.QueryRowContext(ctx,
		"UPDATE fingerprints SET updated_at = ? WHERE key = ? RETURNING fingerprint",
		time.Now().Unix(), key).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query fingerprint: %w", err)
	}

	return fp, true, nil
}

func (s *SQLite) Put(ctx context.Context, key, path string, fp models.Fingerprint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (key, path, fingerprint, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET path = excluded.path, fingerprint = excluded.fingerprint, updated_at = excluded.updated_at`,
		key, path, []byte(fp), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store fingerprint: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete fingerprint: %w", err)
	}
	return nil
}

// Prune removes entries neither stored nor looked up since before.
func (s *SQLite) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE updated_at < ?", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune fingerprints: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); err == nil && unlockErr != nil {
		err = fmt.Errorf("failed to unlock cache: %w", unlockErr)
	}
	return err
}
