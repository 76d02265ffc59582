package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reports events for every file below the directories added with AddRecursiveWatch,
// including directories created later.
type Watcher struct {
	Events     chan Event
	watcher    *fsnotify.Watcher
	done       chan struct{}
	once       sync.Once
	skipHidden bool
}

// New creates a watcher. With skipHidden, directories whose name starts with a dot are
// not descended into.
func New(skipHidden bool) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	wa := &Watcher{
		watcher:    w,
		Events:     make(chan Event),
		done:       make(chan struct{}),
		skipHidden: skipHidden,
	}
	go wa.readEvents()

	return wa, nil
}

func (w *Watcher) AddRecursiveWatch(p string) error {
	return filepath.WalkDir(p, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path != p && w.skipHidden && isHidden(entry.Name()) {
				return fs.SkipDir
			}

			err := w.watcher.Add(path)
			if err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			log.Debug().Msgf("added watch for %s", path)
		}

		return nil
	})
}

// AddWatch watches a single directory without descending into it.
func (w *Watcher) AddWatch(p string) error {
	if err := w.watcher.Add(p); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p, err)
	}
	return nil
}

func (w *Watcher) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.watcher.Close()
}

func (w *Watcher) readEvents() {
	defer close(w.Events)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) && !(w.skipHidden && isHidden(filepath.Base(event.Name))) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.AddRecursiveWatch(event.Name); err != nil {
						log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
					}
				}
			}

			t := time.Now()
			select {
			case w.Events <- Event{
				Path:         event.Name,
				Op:           event.Op,
				Created:      t,
				LastModified: t,
			}:
			case <-w.done:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Caller().Err(err).Msg("watcher returned error")
		}
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
