package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/config"
)

// reloadDelay debounces bursts of file events into one reload.
const reloadDelay = 500 * time.Millisecond

// Holder keeps the current engine. Readers never block; reloads swap in a
// freshly built engine.
type Holder struct {
	current atomic.Pointer[Engine]
}

// NewHolder creates a holder serving e.
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.current.Store(e)
	return h
}

// Engine returns the current engine.
func (h *Holder) Engine() *Engine {
	return h.current.Load()
}

// Swap installs e and returns the previous engine.
func (h *Holder) Swap(e *Engine) *Engine {
	return h.current.Swap(e)
}

// Loader builds engines from rule files.
type Loader struct {
	logger  zerolog.Logger
	parser  *config.Parser
	mu      sync.Mutex
	watcher *fsnotify.Watcher

	// reloadMu orders reloads so the last file read is the last engine swapped in.
	reloadMu sync.Mutex
}

// NewLoader creates a new rule loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "rule-loader").Logger(),
		parser: config.NewParser(),
	}
}

// Load parses paths and builds an engine. With no paths the stock policy is
// used. Validation problems are returned as a CONFIG_INVALID error.
func (l *Loader) Load(ctx context.Context, paths []string) (*Engine, error) {
	if len(paths) == 0 {
		l.logger.Info().Msg("No rule paths configured, using default policy")
		return DefaultEngine(l.logger), nil
	}

	parsed, err := l.parser.Parse(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := parsed.Err(); err != nil {
		return nil, err
	}

	rs, err := BuildAll(parsed.Policy.Rules)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Int("rules", len(rs)).
		Int("files", len(parsed.SourceFiles)).
		Str("policy", parsed.Policy.Name).
		Msg("Rules loaded")

	return NewEngine(l.logger, rs...), nil
}

// Watch reloads the engine when any rule file under paths changes. onReload
// receives the new engine, or the error when a reload fails; a failed reload
// leaves the holder untouched. Watching stops when ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, paths []string, holder *Holder, onReload func(*Engine, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		// Watch the parent of single files so editors that replace files
		// by rename are still seen.
		target := path
		if !info.IsDir() {
			target = filepath.Dir(path)
		}
		if err := watcher.Add(target); err != nil {
			l.logger.Warn().Err(err).Str("path", target).Msg("Failed to watch path")
		}
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go l.processEvents(ctx, watcher, paths, holder, onReload)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching rule paths")

	return nil
}

func (l *Loader) processEvents(ctx context.Context, watcher *fsnotify.Watcher, paths []string, holder *Holder, onReload func(*Engine, error)) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !config.IsSupported(event.Name) {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Rule file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				l.reload(ctx, paths, holder, onReload)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// reload rebuilds the engine and swaps it into holder on success.
func (l *Loader) reload(ctx context.Context, paths []string, holder *Holder, onReload func(*Engine, error)) {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	l.logger.Info().Msg("Reloading rules...")

	engine, err := l.Load(ctx, paths)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to reload rules, keeping previous engine")
		if onReload != nil {
			onReload(nil, err)
		}
		return
	}

	holder.Swap(engine)
	l.logger.Info().Int("rules", engine.Len()).Msg("Rules reloaded successfully")

	if onReload != nil {
		onReload(engine, nil)
	}
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		err := l.watcher.Close()
		l.watcher = nil
		return err
	}
	return nil
}
