package watcher

import (
	"path/filepath"
	"sync"
	"time"
)

const (
	DefaultQuietPeriod = 10 * time.Second
	DefaultTick        = 4 * time.Second
)

// DebouncedWatcher merges bursts of events per path and forwards an event once its path
// has been quiet for the quiet period.
type DebouncedWatcher struct {
	Events chan Event
	w      *Watcher
	events map[string]Event
	mu     *sync.Mutex
	done   chan struct{}
	once   sync.Once
	quiet  time.Duration
	tick   time.Duration
}

func NewDebounced(quiet, tick time.Duration, skipHidden bool) (*DebouncedWatcher, error) {
	w, err := New(skipHidden)
	if err != nil {
		return nil, err
	}

	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if tick <= 0 {
		tick = DefaultTick
	}

	d := DebouncedWatcher{
		Events: make(chan Event),
		w:      w,
		events: make(map[string]Event),
		mu:     &sync.Mutex{},
		done:   make(chan struct{}),
		quiet:  quiet,
		tick:   tick,
	}
	go d.receiveEvents()
	go d.sendEvents()

	return &d, nil
}

func (d *DebouncedWatcher) AddRecursiveWatch(p string) error {
	return d.w.AddRecursiveWatch(p)
}

func (d *DebouncedWatcher) AddWatch(p string) error {
	return d.w.AddWatch(p)
}

func (d *DebouncedWatcher) Close() error {
	d.once.Do(func() { close(d.done) })

	return d.w.Close()
}

func (d *DebouncedWatcher) receiveEvents() {
	for {
		select {
		case event, ok := <-d.w.Events:
			if !ok {
				return
			}

			if event.Kind() == KindDelete {
				d.removeSuperseded(event)
			}

			d.mu.Lock()

			if e, ok := d.events[event.Path]; ok {
				// An event for this path already existed. We have to debounce it
				d.events[event.Path] = debounceEvent(e, event)
			} else {
				d.events[event.Path] = event
			}

			d.mu.Unlock()

		case <-d.done:
			return
		}
	}
}

func (d *DebouncedWatcher) sendEvents() {
	t := time.NewTicker(d.tick)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			for _, e := range d.takeDue(time.Now()) {
				select {
				case d.Events <- e:
				case <-d.done:
					return
				}
			}
		case <-d.done:
			return
		}
	}
}

// takeDue removes and returns the events that have been quiet long enough.
func (d *DebouncedWatcher) takeDue(now time.Time) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var due []Event
	for path, e := range d.events {
		if now.After(e.LastModified.Add(d.quiet)) {
			due = append(due, e)
			delete(d.events, path)
		}
	}

	return due
}

func (d *DebouncedWatcher) removeSuperseded(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range d.events {
		path := e.Path

		for path != filepath.Dir(path) {
			// Discard other events if they occurred in this event folder
			if event.Path == path {
				delete(d.events, e.Path)
				break
			}

			path = filepath.Dir(path)
		}
	}
}
