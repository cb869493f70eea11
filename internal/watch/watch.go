// Package watch re-runs a batch when input files appear or change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/sheetflow/internal/logging"
)

// RunFunc performs one batch run.
type RunFunc func(ctx context.Context) error

// Options configure a Watcher.
type Options struct {
	Dir          string        // directory to watch
	Ext          string        // input extension, e.g. ".xlsx"
	Debounce     time.Duration // quiet period before a run
	PollInterval time.Duration // forced run interval, 0 disables
}

// Watcher triggers runs on input directory changes. A burst of events
// (a copy of many files, an editor's save dance) results in one run once
// the directory has been quiet for the debounce period.
type Watcher struct {
	opts Options
	run  RunFunc
}

// New creates a watcher.
func New(opts Options, run RunFunc) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	return &Watcher{opts: opts, run: run}
}

// Watch runs once for the files already present, then on every debounced
// change until ctx is cancelled. Run errors are logged and do not stop the
// watcher.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}

	logger := logging.FromContext(ctx)
	logger.Info("watching for input", "dir", w.opts.Dir, "ext", w.opts.Ext, "debounce", w.opts.Debounce)

	w.runOnce(ctx, "startup")

	if w.opts.PollInterval > 0 {
		go Poll(ctx, w.opts.PollInterval, func(ctx context.Context) error {
			w.runOnce(ctx, "poll")
			return nil
		})
	}

	return w.loop(ctx, watcher.Events, watcher.Errors)
}

// loop debounces events into runs. Runs happen on this goroutine, so
// events arriving during a run are queued and trigger the next one.
func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	logger := logging.FromContext(ctx)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		lastHit string
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher stopped")
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			lastHit = filepath.Base(event.Name)
			stop()
			timer = time.NewTimer(w.opts.Debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.runOnce(ctx, lastHit)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// relevant reports whether an event can change the set of inputs.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	return w.opts.Ext == "" || strings.EqualFold(filepath.Ext(name), w.opts.Ext)
}

func (w *Watcher) runOnce(ctx context.Context, cause string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := w.run(ctx); err != nil {
		logging.FromContext(ctx).Error("triggered run failed", "cause", cause, "error", err)
		return
	}
	logging.FromContext(ctx).Debug("triggered run completed", "cause", cause, "duration_ms", time.Since(start).Milliseconds())
}
