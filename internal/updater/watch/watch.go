// Package watch reflashes an image every time it is rewritten on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/hologram-io/dash-updater/pkg/log"
)

// DefaultSettle is how long the file must stay untouched before an update
// starts. Linkers and copy tools write in several steps.
const DefaultSettle = 500 * time.Millisecond

// UpdateFunc flashes the image once.
type UpdateFunc func(ctx context.Context) error

// Watcher runs an UpdateFunc after every change of one file. Updates never
// overlap; changes seen during an update trigger exactly one more.
type Watcher struct {
	path   string
	update UpdateFunc
	settle time.Duration
	clock  clock.Clock

	// OnResult, when set, receives the outcome of every update.
	OnResult func(err error)
}

// New watches path.
func New(path string, update UpdateFunc, settle time.Duration, c clock.Clock) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if c == nil {
		c = clock.RealClock{}
	}
	return &Watcher{path: filepath.Clean(path), update: update, settle: settle, clock: c}
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	// The directory is watched so that editors replacing the file by rename
	// keep triggering.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	trigger := make(chan struct{}, 1)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.collect(ctx, fsw, trigger)
	})
	g.Go(func() error {
		return w.apply(ctx, trigger)
	})

	log.Info("Watching image for changes", "path", w.path)
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// collect turns file events into at most one pending trigger, sent once the
// file has been quiet for the settle period.
func (w *Watcher) collect(ctx context.Context, fsw *fsnotify.Watcher, trigger chan<- struct{}) error {
	var settled <-chan time.Time
	var timer clock.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("File watcher error", "err", err)

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			log.Debug("Image changed", "path", ev.Name, "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = w.clock.NewTimer(w.settle)
			settled = timer.C()

		case <-settled:
			settled = nil
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	}
}

func (w *Watcher) apply(ctx context.Context, trigger <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-trigger:
		}

		log.Info("Flashing changed image", "path", w.path)
		err := w.update(ctx)
		if err != nil {
			log.Error(err, "Update failed", "path", w.path)
		} else {
			log.Info("Update Complete", "path", w.path)
		}
		if w.OnResult != nil {
			w.OnResult(err)
		}
	}
}
