package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/site-packager/internal/logger"
)

// DefaultDebounce is how long events must settle before a callback fires.
// Exports touch many files in a burst; one repackage per burst is enough.
const DefaultDebounce = 300 * time.Millisecond

// Watcher recursively watches a directory tree for changes.
type Watcher struct {
	// fsw is the underlying fsnotify watcher.
	fsw *fsnotify.Watcher
	// root is the directory tree being watched.
	root string
	// debounce is the settle period before the callback fires.
	debounce time.Duration
}

// New creates a watcher over the provided root.
// Every existing subdirectory is registered; directories created later
// are picked up from their create events.
func New(root string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsw:      fsw,
		root:     root,
		debounce: debounce,
	}

	if err = w.addRecursive(root); err != nil {
		_ = fsw.Close()

		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks until the context is canceled, invoking onChange after each
// burst of filesystem events settles for the debounce period. Callback
// errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	ctx = logger.WithName(ctx, "watcher")

	logger.InfoKV(ctx, "Watching for changes", "root", w.root)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			// Newly created directories must be registered to stay recursive.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			logger.DebugKV(ctx, "Change detected", "path", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}

				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			logger.ErrorKV(ctx, "Watch error", "error", err)

		case <-fire:
			timer = nil
			fire = nil

			if err := onChange(ctx); err != nil {
				logger.ErrorKV(ctx, "Repackage failed", "error", err)
			}
		}
	}
}

// addRecursive registers dir and every directory beneath it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return w.fsw.Add(path)
		}

		return nil
	})
}
