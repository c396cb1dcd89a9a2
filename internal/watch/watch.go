// Package watch re-runs a function whenever the asset pool settles after
// a change.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentstation/rostersync/internal/matcher"
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
)

// RunFunc is invoked once at start and once per settled batch of changes.
// An error is logged and the watcher keeps going, unless it is a
// bootstrap error.
type RunFunc func(ctx context.Context) error

// Watcher watches one directory.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Filter   *matcher.Filter
}

// New returns a watcher with the default debounce and pool filter.
func New(dir string) *Watcher {
	return &Watcher{Dir: dir, Debounce: constants.WatchDebounce, Filter: matcher.DefaultFilter()}
}

// relevant reports whether ev should trigger a run.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return w.Filter.Keep(filepath.Base(ev.Name))
}

// Run calls fn, then again after every burst of changes, until ctx ends.
func (w *Watcher) Run(ctx context.Context, fn RunFunc) error {
	logger := logging.FromContext(ctx).With().Str("dir", w.Dir).Logger()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapBootstrap("watch pool", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.Dir); err != nil {
		return errors.WrapBootstrap("watch pool", errors.WrapIO("watch", w.Dir, err))
	}

	run := func() error {
		err := fn(ctx)
		switch {
		case err == nil:
		case errors.IsBootstrap(err):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			logger.Error().Err(err).Msg("Run failed, waiting for further changes")
		}
		return nil
	}

	if err := run(); err != nil {
		return err
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = constants.WatchDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := 0

	logger.Info().Dur("debounce", debounce).Msg("Watching pool for changes")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			pending++
			logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Pool changed")
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watcher error")

		case <-timer.C:
			logger.Info().Int("changes", pending).Msg("Pool settled, re-running")
			pending = 0
			if err := run(); err != nil {
				return err
			}
		}
	}
}
