// Package scanner finds near-duplicate files below a set of directories.
//
// A run walks the directories, fingerprints every matching file through the cache and
// compares every pair of fingerprints once.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Leantar/fdi/models"
	"github.com/Leantar/fdi/modules/cache"
	"github.com/Leantar/fdi/modules/fingerprint"
	"github.com/Leantar/fdi/modules/hashengine"
	"github.com/Leantar/fdi/modules/identity"
	"github.com/Leantar/fdi/modules/similarity"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Scanner struct {
	conf     Config
	roots    []string
	pattern  *regexp.Regexp
	engine   *hashengine.Engine
	provider fingerprint.Provider
	store    cache.Store
	runID    string
	logger   zerolog.Logger
}

type Option func(*Scanner)

// WithProvider replaces the provider selected by Config.Fingerprint.
func WithProvider(p fingerprint.Provider) Option {
	return func(s *Scanner) { s.provider = p }
}

// WithStore replaces the cache selected by Config.Cache. The scanner closes it on Close.
func WithStore(st cache.Store) Option {
	return func(s *Scanner) { s.store = st }
}

// New builds a scanner. Errors are configuration errors and should stop the process.
func New(ctx context.Context, conf Config, opts ...Option) (*Scanner, error) {
	conf.SetDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	engine, err := hashengine.New(conf.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	roots := make([]string, len(conf.Directories))
	for i, dir := range conf.Directories {
		roots[i] = filepath.Clean(dir)
	}

	runID := uuid.NewString()
	s := &Scanner{
		conf:    conf,
		roots:   roots,
		pattern: regexp.MustCompile(conf.Pattern),
		engine:  engine,
		runID:   runID,
		logger:  log.With().Str("run_id", runID).Logger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.provider == nil {
		s.provider, err = fingerprint.New(conf.Fingerprint)
		if err != nil {
			return nil, err
		}
	}

	if s.store == nil {
		s.store, err = cache.Open(ctx, conf.Cache)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
	}

	return s, nil
}

func (s *Scanner) Close() error {
	return s.store.Close()
}

func (s *Scanner) RunID() string {
	return s.runID
}

func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	paths, err := s.Collect()
	if err != nil {
		return nil, err
	}

	s.logger.Info().Msgf("building fingerprint set for %d files", len(paths))
	files, stats, err := s.Fingerprint(ctx, paths)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Msg("grouping fingerprints by similarity")
	matches, err := s.Compare(ctx, files)
	if err != nil {
		return nil, err
	}

	s.prune(ctx)

	return &Report{
		RunID:   s.runID,
		Files:   len(files),
		Failed:  stats.Failed,
		Cached:  stats.Cached,
		Matches: matches,
	}, nil
}

// Collect returns the sorted paths of all matching files below the configured directories.
// Directories that do not exist are skipped.
func (s *Scanner) Collect() ([]string, error) {
	seen := make(map[string]struct{})

	for _, root := range s.roots {
		stat, err := os.Stat(root)
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Str("path", root).Msg("directory does not exist")
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info().Msgf("scanning %s", root)

		if !stat.IsDir() {
			if s.pattern.MatchString(filepath.Base(root)) {
				seen[root] = struct{}{}
			}
			continue
		}

		err = filepath.WalkDir(root, s.walk(root, seen))
		if err != nil {
			return nil, err
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	return paths, nil
}

func (s *Scanner) walk(root string, seen map[string]struct{}) fs.WalkDirFunc {
	return func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// An unreadable subtree does not abort the scan
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to read directory entry")
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path != root && !s.conf.IncludeHidden && isHidden(entry.Name()) {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if entry.Type().IsRegular() && s.pattern.MatchString(entry.Name()) {
			seen[path] = struct{}{}
		}

		return nil
	}
}

// prune drops cache entries no run has used within Cache.PruneAfter. Failures only
// cost cache space, so they are logged.
func (s *Scanner) prune(ctx context.Context) {
	pruner, ok := s.store.(cache.Pruner)
	if !ok || s.conf.Cache.PruneAfter <= 0 {
		return
	}

	n, err := pruner.Prune(ctx, time.Now().Add(-s.conf.Cache.PruneAfter))
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to prune fingerprint cache")
		return
	}
	s.logger.Debug().Int64("entries", n).Msg("pruned fingerprint cache")
}

// rootOf returns the configured root that contains path.
func (s *Scanner) rootOf(path string) (string, bool) {
	path = filepath.Clean(path)
	for _, root := range s.roots {
		if path == root || isBelow(path, root) {
			return root, true
		}
	}
	return "", false
}

// skipped reports whether Collect would leave path out for being outside every root or
// below a hidden entry. The file name pattern is not checked.
func (s *Scanner) skipped(path string) bool {
	root, ok := s.rootOf(path)
	if !ok {
		return true
	}
	if s.conf.IncludeHidden || path == root {
		return false
	}

	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if isHidden(part) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isBelow(path, dir string) bool {
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}

type Stats struct {
	Failed int
	Cached int
}

// Fingerprint fingerprints paths in a pool of workers. Files that cannot be read are
// logged and left out of the result.
func (s *Scanner) Fingerprint(ctx context.Context, paths []string) ([]models.FingerprintedFile, Stats, error) {
	results := make([]*models.FingerprintedFile, len(paths))
	jobs := make(chan int)

	var done, failed, cached atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < s.conf.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Owned by this worker until it exits
			gen := identity.NewGenerator(s.engine.Acquire())

			for idx := range jobs {
				file, hit, err := s.fingerprintFile(ctx, gen, paths[idx])
				if err != nil {
					failed.Add(1)
					s.logger.Warn().Err(err).Str("path", paths[idx]).Msg("failed to fingerprint file")
				} else {
					results[idx] = &file
					if hit {
						cached.Add(1)
					}
				}

				if n := done.Add(1); n%int64(s.conf.ProgressEvery) == 0 {
					s.logger.Info().Msgf("loaded %d fingerprints...", n)
				}
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	files := make([]models.FingerprintedFile, 0, len(paths))
	for _, r := range results {
		if r != nil {
			files = append(files, *r)
		}
	}

	return files, Stats{Failed: int(failed.Load()), Cached: int(cached.Load())}, nil
}

// fingerprintFile looks the file up by identity key and only extracts a fingerprint on a
// cache miss. The returned bool reports a cache hit.
func (s *Scanner) fingerprintFile(ctx context.Context, gen *identity.Generator, path string) (models.FingerprintedFile, bool, error) {
	key, err := gen.Compute(path)
	if err != nil {
		return models.FingerprintedFile{}, false, err
	}

	fp, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to read fingerprint cache")
	}
	// Entries written by another fingerprint kind have another length
	if ok && len(fp) == s.provider.Size() {
		return models.FingerprintedFile{Path: path, Key: key, Fingerprint: fp}, true, nil
	}

	fp, err = s.provider.Fingerprint(path)
	if err != nil {
		return models.FingerprintedFile{}, false, err
	}

	if err := s.store.Put(ctx, key, path, fp); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to write fingerprint cache")
	}

	return models.FingerprintedFile{Path: path, Key: key, Fingerprint: fp}, false, nil
}

// Compare checks every unordered pair of files once and groups matches under the
// earlier file. A length mismatch aborts the comparison.
func (s *Scanner) Compare(ctx context.Context, files []models.FingerprintedFile) ([]Match, error) {
	tolerance := s.conf.tolerance()

	var mu sync.Mutex
	var compared atomic.Int64
	similar := make(map[string][]string)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.conf.Workers)

	for i := range files {
		g.Go(func() error {
			var found []string
			for _, candidate := range files[i+1:] {
				if err := ctx.Err(); err != nil {
					return err
				}

				ok, err := similarity.IsSimilar(files[i].Fingerprint, candidate.Fingerprint, tolerance)
				if err != nil {
					return fmt.Errorf("failed to compare %s with %s: %w", files[i].Path, candidate.Path, err)
				}
				if ok {
					found = append(found, candidate.Path)
				}
			}

			if n := compared.Add(1); n%int64(s.conf.ProgressEvery) == 0 {
				s.logger.Info().Msgf("processed %d of %d files", n, len(files))
			}

			if len(found) > 0 {
				mu.Lock()
				similar[files[i].Path] = found
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(similar))
	for path, others := range similar {
		sort.Strings(others)
		matches = append(matches, Match{Path: path, Similar: others})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })

	return matches, nil
}
