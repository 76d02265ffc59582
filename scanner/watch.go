package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/Leantar/fdi/models"
	"github.com/Leantar/fdi/modules/identity"
	"github.com/Leantar/fdi/modules/similarity"
	"github.com/Leantar/fdi/modules/watcher"
)

// Watch keeps files up to date with filesystem events until ctx is done, and reports
// every new match through onMatch. files is the result of a previous Fingerprint call.
// Roots are treated like Collect treats them: missing roots are skipped and hidden
// entries are ignored unless IncludeHidden is set.
func (s *Scanner) Watch(ctx context.Context, files []models.FingerprintedFile, onMatch func(Match)) error {
	w, err := watcher.NewDebounced(s.conf.Watch.QuietPeriod, s.conf.Watch.Tick, !s.conf.IncludeHidden)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range s.roots {
		stat, err := os.Stat(root)
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Str("path", root).Msg("directory does not exist, not watching it")
			continue
		}
		if err != nil {
			return err
		}

		if stat.IsDir() {
			err = w.AddRecursiveWatch(root)
		} else {
			// Events for the file arrive through its directory; rootOf filters the siblings
			err = w.AddWatch(filepath.Dir(root))
		}
		if err != nil {
			return err
		}
	}

	index := make(map[string]models.FingerprintedFile, len(files))
	for _, f := range files {
		index[f.Path] = f
	}

	// Events are handled one at a time, so a single generator suffices
	gen := identity.NewGenerator(s.engine.Acquire())

	s.logger.Info().Int("files", len(index)).Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if err := s.handleEvent(ctx, gen, index, event, onMatch); err != nil {
				return err
			}
		}
	}
}

func (s *Scanner) handleEvent(ctx context.Context, gen *identity.Generator, index map[string]models.FingerprintedFile, event watcher.Event, onMatch func(Match)) error {
	if event.Kind() == watcher.KindDelete {
		for path := range index {
			if path == event.Path || isBelow(path, event.Path) {
				s.forget(ctx, index, path)
			}
		}
		return nil
	}

	if s.skipped(event.Path) {
		return nil
	}

	info, err := os.Stat(event.Path)
	if err != nil {
		// Already gone again, the delete event follows
		s.logger.Debug().Err(err).Str("path", event.Path).Msg("failed to stat changed path")
		return nil
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() || !s.pattern.MatchString(filepath.Base(event.Path)) {
			return nil
		}
		return s.handleFile(ctx, gen, index, event.Path, onMatch)
	}

	// A directory moved into the tree brings files that never get events of their own
	seen := make(map[string]struct{})
	if err := filepath.WalkDir(event.Path, s.walk(event.Path, seen)); err != nil {
		s.logger.Warn().Err(err).Str("path", event.Path).Msg("failed to walk new directory")
		return nil
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := s.handleFile(ctx, gen, index, path, onMatch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) handleFile(ctx context.Context, gen *identity.Generator, index map[string]models.FingerprintedFile, path string, onMatch func(Match)) error {
	file, _, err := s.fingerprintFile(ctx, gen, path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to fingerprint file")
		return nil
	}

	if old, ok := index[file.Path]; ok {
		if old.Key == file.Key {
			return nil
		}
		s.deleteCached(ctx, old)
	}
	index[file.Path] = file

	var found []string
	for p, other := range index {
		if p == file.Path {
			continue
		}
		ok, err := similarity.IsSimilar(file.Fingerprint, other.Fingerprint, s.conf.tolerance())
		if err != nil {
			return err
		}
		if ok {
			found = append(found, p)
		}
	}

	if len(found) > 0 {
		sort.Strings(found)
		s.logger.Info().Str("path", file.Path).Strs("similar", found).Msg("found similar files")
		if onMatch != nil {
			onMatch(Match{Path: file.Path, Similar: found})
		}
	}

	return nil
}

// forget drops a deleted file from the index and the cache.
func (s *Scanner) forget(ctx context.Context, index map[string]models.FingerprintedFile, path string) {
	old := index[path]
	delete(index, path)
	s.deleteCached(ctx, old)
	s.logger.Debug().Str("path", path).Msg("file removed")
}

// deleteCached removes the entry of a file version that no longer exists.
func (s *Scanner) deleteCached(ctx context.Context, old models.FingerprintedFile) {
	if err := s.store.Delete(ctx, old.Key); err != nil {
		s.logger.Warn().Err(err).Str("path", old.Path).Msg("failed to delete cached fingerprint")
	}
}
