package plugin

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// DefaultWatchDebounce is how long the plugins directory must be quiet
// before a change triggers a reload.
const DefaultWatchDebounce = 500 * time.Millisecond

// ReloadFunc receives the result of reloading the plugins directory.
type ReloadFunc func(ctx context.Context, result *LoadResult, err error)

// Watcher reloads the plugins directory when manifest files change.
type Watcher struct {
	loader   *Loader
	onReload ReloadFunc
	debounce time.Duration
	logger   ports.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchDebounce sets the quiet period before a reload.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(logger ports.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher that calls onReload after each burst of
// manifest changes in the loader's directory.
func NewWatcher(loader *Loader, onReload ReloadFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		loader:   loader,
		onReload: onReload,
		debounce: DefaultWatchDebounce,
		logger:   ports.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounce <= 0 {
		w.debounce = DefaultWatchDebounce
	}
	return w
}

// Run watches until ctx is cancelled. The plugins directory is created if it
// does not exist so that the first install is noticed.
func (w *Watcher) Run(ctx context.Context) error {
	dir := w.loader.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating plugins directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Debug(ctx, "watching plugins directory", ports.F("dir", dir))

	ticker := time.NewTicker(max(w.debounce/2, time.Millisecond))
	defer ticker.Stop()

	var lastChange time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !IsManifestFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			lastChange = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "plugin watcher error", ports.Err(err))

		case <-ticker.C:
			if lastChange.IsZero() || time.Since(lastChange) < w.debounce {
				continue
			}
			lastChange = time.Time{}
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	result, err := w.loader.LoadAll(ctx)
	if err != nil {
		w.logger.Warn(ctx, "plugin reload failed", ports.Err(err))
	} else {
		w.logger.Info(ctx, "plugins reloaded", ports.F("loaded", len(result.Plugins)))
	}
	if w.onReload != nil {
		w.onReload(ctx, result, err)
	}
}
