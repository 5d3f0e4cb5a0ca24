// ruled/pkg/ruleset/watcher.go

package ruleset

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"ruled/pkg/logging"
)

// Watcher watches a rule directory and signals when the corpus changed on
// disk. Bursts of filesystem events coalesce into a single notification;
// the consumer is expected to reload the whole directory anyway.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %q: %w", dir, err)
	}

	w := &Watcher{
		fsw:     fsw,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Changes delivers one signal per burst of rule document changes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Chmod does not change document content.
			if evt.Has(fsnotify.Chmod) {
				continue
			}
			if _, ok := documentFormat(filepath.Base(evt.Name)); !ok {
				continue
			}
			logging.Logger.Debug().Str("file", evt.Name).Str("op", evt.Op.String()).
				Msg("Rule document changed")
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Logger.Error().Err(err).Msg("Rule directory watch error")
		case <-w.done:
			return
		}
	}
}
