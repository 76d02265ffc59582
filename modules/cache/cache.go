// Package cache stores fingerprints keyed by file identity key.
//
// A key only maps to a fingerprint while the file keeps its path, modification time and
// size, so entries never need to be invalidated explicitly. Stale keys are simply never
// looked up again.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Leantar/fdi/models"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var ErrUnknownBackend = errors.New("unknown cache backend")

type Config struct {
	Backend string `yaml:"backend"`
	// Path of the SQLite database
	Path          string        `yaml:"path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	// PruneAfter drops entries unused for this long at the end of a scan. Zero keeps everything.
	PruneAfter time.Duration `yaml:"prune_after"`
}

// Store must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (models.Fingerprint, bool, error)
	Put(ctx context.Context, key, path string, fp models.Fingerprint) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Pruner is implemented by stores that keep entries until told otherwise.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

func Open(ctx context.Context, conf Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(conf.Backend)) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, conf.Path)
	case BackendRedis:
		return OpenRedis(ctx, conf.RedisAddr, conf.RedisPassword, conf.RedisDB, conf.TTL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, conf.Backend)
	}
}
