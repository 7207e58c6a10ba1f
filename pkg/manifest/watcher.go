package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// DefaultDebounce coalesces the burst of events editors and config map
// updates produce for one change.
const DefaultDebounce = 100 * time.Millisecond

// ReloadObserver is told about every reload attempt.
// observability.Metrics implements it.
type ReloadObserver interface {
	ObserveManifestReload(err error)
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Watch enables reloading when the manifest file changes.
	Watch bool
	// ResyncSchedule is a cron spec ("@every 5m") for periodic re-applies.
	// Empty disables resync.
	ResyncSchedule string
	Debounce       time.Duration
	Observer       ReloadObserver
}

// Watcher reloads the manifest from disk and applies it.
type Watcher struct {
	path       string
	reconciler *Reconciler
	logger     *observability.Logger
	opts       WatcherOptions

	fsw    *fsnotify.Watcher
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// reloadMu serializes reloads from the file watcher, cron and callers.
	reloadMu sync.Mutex
	stopOnce sync.Once
}

func NewWatcher(path string, reconciler *Reconciler, logger *observability.Logger, opts WatcherOptions) *Watcher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		path:       filepath.Clean(path),
		reconciler: reconciler,
		logger:     logger.WithField("manifest", path),
		opts:       opts,
	}
}

// Reload loads the manifest file and applies it.
func (w *Watcher) Reload(ctx context.Context) (Result, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	result, err := w.reload(ctx)
	if w.opts.Observer != nil {
		w.opts.Observer.ObserveManifestReload(err)
	}
	if err != nil {
		w.logger.WithError(err).Error("manifest reload failed")
	}
	return result, err
}

func (w *Watcher) reload(ctx context.Context) (Result, error) {
	m, err := Load(w.path)
	if err != nil {
		return Result{}, err
	}
	return w.reconciler.Apply(ctx, m)
}

// Start begins watching and resyncing in the background. It does not load
// the manifest itself; call Reload first.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	if w.opts.Watch {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		// Watch the directory: editors and config map updates replace the
		// file rather than writing it in place.
		if err := fsw.Add(filepath.Dir(w.path)); err != nil {
			fsw.Close()
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
		}
		w.fsw = fsw

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer observability.RecoverPanic(w.logger, "manifest watcher")
			w.watch(ctx)
		}()
	}

	if w.opts.ResyncSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(w.opts.ResyncSchedule, func() {
			defer observability.RecoverPanic(w.logger, "manifest resync")
			if _, err := w.Reload(ctx); err == nil {
				w.logger.Debug("manifest resynced")
			}
		})
		if err != nil {
			w.Stop()
			return fmt.Errorf("invalid resync schedule %q: %w", w.opts.ResyncSchedule, err)
		}
		c.Start()
		w.cron = c
	}

	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	var (
		timer   *time.Timer
		trigger = make(chan struct{}, 1)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.opts.Debounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case <-trigger:
			w.logger.Info("manifest changed, reloading")
			_, _ = w.Reload(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("watcher error")
		}
	}
}

// Stop halts watching and resync and waits for an in-flight reload.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cron != nil {
			<-w.cron.Stop().Done()
		}
		if w.cancel != nil {
			w.cancel()
		}
		if w.fsw != nil {
			err = w.fsw.Close()
		}
		w.wg.Wait()
	})
	return err
}
