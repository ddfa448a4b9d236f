package config

import (
	"context"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"lokkagw/internal/domain"
)

const defaultReloadDebounce = 200 * time.Millisecond

// Watcher reloads the config file when it changes and hands the new
// tunables to Apply. Other fields only take effect after a restart.
type Watcher struct {
	path     string
	loader   *Loader
	logger   *zap.Logger
	debounce time.Duration
	apply    func(domain.Tunables)
	current  domain.Config
}

type WatcherOptions struct {
	Path     string
	Loader   *Loader
	Logger   *zap.Logger
	Debounce time.Duration
	Initial  domain.Config
	Apply    func(domain.Tunables)
}

func NewWatcher(opts WatcherOptions) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := opts.Loader
	if loader == nil {
		loader = NewLoader(logger)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	return &Watcher{
		path:     opts.Path,
		loader:   loader,
		logger:   logger.Named("config_watcher"),
		debounce: debounce,
		apply:    opts.Apply,
		current:  opts.Initial,
	}
}

// Run blocks until ctx is done. The directory is watched rather than the
// file so editors that replace the file on save are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		return nil
	}
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("config watcher failed", zap.Error(err))
		return nil
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		w.logger.Warn("config watcher add failed", zap.String("path", abs), zap.Error(err))
		return nil
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				w.logger.Warn("config watcher error", zap.Error(err))
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			if err := w.reload(ctx); err != nil {
				w.logger.Warn("config reload failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) reload(ctx context.Context) error {
	next, err := w.loader.Load(ctx, w.path)
	if err != nil {
		return err
	}
	prev := w.current
	w.current = next

	if restartRequired(prev, next) {
		w.logger.Warn("config changed outside runtime tunables; restart required to apply")
	}
	if prev.Tunables() == next.Tunables() {
		return nil
	}
	w.logger.Info("runtime tunables updated",
		zap.Duration("requestTimeout", next.Runtime.RequestTimeout()),
		zap.Duration("cacheTTL", next.Runtime.CacheTTL()),
		zap.String("logLevel", next.LogLevel),
	)
	if w.apply != nil {
		w.apply(next.Tunables())
	}
	return nil
}

func restartRequired(prev, next domain.Config) bool {
	return !reflect.DeepEqual(withoutTunables(prev), withoutTunables(next))
}

func withoutTunables(cfg domain.Config) domain.Config {
	cfg.LogLevel = ""
	cfg.Runtime.RequestTimeoutSeconds = 0
	cfg.Runtime.CacheTTLMinutes = 0
	return cfg
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
