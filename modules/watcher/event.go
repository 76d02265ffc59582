package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	KindCreate  = "CREATE"
	KindDelete  = "DELETE"
	KindChange  = "CHANGE"
	KindUnknown = "UNKNOWN"
)

type Event struct {
	Path         string
	Op           fsnotify.Op
	Created      time.Time
	LastModified time.Time
}

func (e Event) Kind() string {
	switch {
	case e.Op.Has(fsnotify.Create):
		return KindCreate
	case e.Op.Has(fsnotify.Remove), e.Op.Has(fsnotify.Rename):
		// A renamed file shows up again as a create for its new name
		return KindDelete
	case e.Op.Has(fsnotify.Write), e.Op.Has(fsnotify.Chmod):
		return KindChange
	}
	return KindUnknown
}

func debounceEvent(old, new Event) Event {
	switch new.Kind() {
	case KindCreate:
		if old.Kind() == KindDelete {
			// A previously deleted file was recreated. Therefore, the event must be rewritten to a change type
			old.Op = fsnotify.Write
		} else {
			old.Op = new.Op
		}
	case KindDelete:
		old.Op = new.Op
	case KindChange:
		// Sometimes on creation of a file a "CHANGE" event gets emitted instead of a "CREATE".
		// We handle it like in the "CREATE" case
		if old.Kind() == KindDelete {
			old.Op = fsnotify.Write
		}
	}
	old.LastModified = new.Created

	return old
}
