package ledger

import (
	"github.com/fsnotify/fsnotify"
)

// WatchQueue notifies onChange whenever the queue file at path is
// written. No command in this module constructs one, and it has no
// bearing on the correctness invariants, which all concern on-disk
// state, not live notification.
type WatchQueue struct {
	watcher *fsnotify.Watcher
}

// NewWatchQueue starts watching path itself; its containing directory is
// not watched, so a replace-via-rename of the file is not followed.
func NewWatchQueue(path string, onChange func()) (*WatchQueue, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return &WatchQueue{watcher: w}, nil
}

// Close stops watching.
func (q *WatchQueue) Close() error {
	return q.watcher.Close()
}
