package scanner

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"time"

	"github.com/Leantar/fdi/modules/cache"
	"github.com/Leantar/fdi/modules/fingerprint"
	"github.com/Leantar/fdi/modules/hashengine"
)

const (
	DefaultPattern       = `\.(?:jpg|jpeg|png)$`
	DefaultTolerance     = 5
	DefaultProgressEvery = 1000
)

type Config struct {
	Directories   []string     `yaml:"directories"`
	Pattern       string       `yaml:"pattern"`
	IncludeHidden bool         `yaml:"include_hidden"`
	Tolerance     *uint        `yaml:"tolerance"`
	Workers       int          `yaml:"workers"`
	HashAlgorithm string       `yaml:"hash_algorithm"`
	Fingerprint   string       `yaml:"fingerprint"`
	ProgressEvery int          `yaml:"progress_every"`
	Cache         cache.Config `yaml:"cache"`
	Watch         WatchConfig  `yaml:"watch"`
}

type WatchConfig struct {
	QuietPeriod time.Duration `yaml:"quiet_period"`
	Tick        time.Duration `yaml:"tick"`
}

func (c *Config) SetDefaults() {
	if c.Pattern == "" {
		c.Pattern = DefaultPattern
	}
	if c.Tolerance == nil {
		t := uint(DefaultTolerance)
		c.Tolerance = &t
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = hashengine.DefaultAlgorithm
	}
	if c.Fingerprint == "" {
		c.Fingerprint = fingerprint.KindImage
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = cache.BackendMemory
	}
}

func (c *Config) Validate() error {
	if len(c.Directories) == 0 {
		return errors.New("at least one directory is required")
	}
	if _, err := regexp.Compile(c.Pattern); err != nil {
		return fmt.Errorf("invalid file pattern: %w", err)
	}
	return nil
}

func (c *Config) tolerance() uint {
	if c.Tolerance == nil {
		return DefaultTolerance
	}
	return *c.Tolerance
}
