// Package watch rebuilds the system corpus when files in its data directory change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"rag_chatbot/internal/loader"
)

const DefaultDebounce = 2 * time.Second

// Reloader is satisfied by *corpus.Machine.
type Reloader interface {
	ReloadSystem(ctx context.Context) error
}

type Watcher struct {
	dir      string
	reloader Reloader
	debounce time.Duration
	logger   *slog.Logger
}

func New(dir string, r Reloader, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, reloader: r, debounce: debounce, logger: logger}
}

// Run watches until ctx is cancelled. A burst of changes triggers one reload once the
// directory has been quiet for the debounce interval.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("Watching system data", "dir", w.dir, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !handleEvent(ev) {
				continue
			}
			w.logger.Debug("System data changed", "path", ev.Name, "op", ev.Op.String())
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case <-timer.C:
			pending = false
			w.logger.Info("Reloading system corpus after changes", "dir", w.dir)
			if err := w.reloader.ReloadSystem(ctx); err != nil {
				w.logger.Error("System corpus reload failed", "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

// handleEvent reports whether ev should trigger a reload.
func handleEvent(ev fsnotify.Event) bool {
	if !loader.Indexable(ev.Name) {
		return false
	}
	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
}
