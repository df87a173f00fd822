// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when files of a project change.
//
// Events are filtered through doublestar glob patterns and coalesced over a
// debounce window, so an editor's write-then-rename or a branch checkout
// produces one callback carrying every changed path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

var (
	// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch config")

	// defaultPatterns select the files that affect a cargo test run.
	defaultPatterns = []string{
		"**/*.rs",
		"**/Cargo.toml",
		"Cargo.lock",
		"rust-toolchain",
		"rust-toolchain.toml",
		".testbox.env",
	}

	// defaultIgnores are never watched. target/ is cargo's own output.
	defaultIgnores = []string{
		"**/.git/**",
		"target/**",
		"**/*.swp",
		"**/*.swo",
		"**/*~",
		"**/.#*",
		"**/.DS_Store",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Patterns select the files whose changes trigger OnChange. Empty
		// means DefaultPatterns.
		Patterns []string
		// Ignore is merged with DefaultIgnores; matching directories are not
		// descended into.
		Ignore []string
		// Debounce is the quiet period after the last event. Zero means 500ms.
		Debounce time.Duration
		// ClearScreen writes an ANSI clear sequence to Stdout before each callback.
		ClearScreen bool
		// BaseDir is the watched tree; paths passed to OnChange are relative to it.
		BaseDir string
		// OnChange receives the deduplicated changed paths. Errors are logged
		// and watching continues.
		OnChange func(ctx context.Context, changed []string) error

		Stdout io.Writer
		Logger *log.Logger
	}

	// InvalidWatchConfigError collects every invalid Config field.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors BaseDir. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		patterns []string
		ignores  []string
		stdout   io.Writer
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool
	}
)

func (e *InvalidWatchConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid watch config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate checks patterns and BaseDir without touching the filesystem.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs, patternErrors(c.Patterns, "watch")...)
	errs = append(errs, patternErrors(c.Ignore, "ignore")...)
	if c.BaseDir != "" && strings.TrimSpace(c.BaseDir) == "" {
		errs = append(errs, errors.New("base directory must not be blank"))
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

func patternErrors(patterns []string, kind string) []error {
	var errs []error
	for _, pat := range patterns {
		switch {
		case pat == "":
			errs = append(errs, fmt.Errorf("empty %s pattern", kind))
		case !doublestar.ValidatePattern(pat):
			errs = append(errs, fmt.Errorf("invalid %s pattern %q", kind, pat))
		}
	}
	return errs
}

// DefaultPatterns returns a copy of the built-in watch patterns.
func DefaultPatterns() []string { return slices.Clone(defaultPatterns) }

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string { return slices.Clone(defaultIgnores) }

// New creates a Watcher and registers every non-ignored directory under BaseDir.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: cfg.Patterns,
		ignores:  append(DefaultIgnores(), cfg.Ignore...),
		stdout:   cfg.Stdout,
		logger:   cfg.Logger,
		debounce: cfg.Debounce,
		baseDir:  absBase,
	}
	if len(w.patterns) == 0 {
		w.patterns = DefaultPatterns()
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.stdout == nil {
		w.stdout = os.Stdout
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			w.logger.Warn("failed to close watcher", "error", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled. It returns nil on
// cancellation and an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire runs on the timer goroutine. A change that arrives while the
	// previous callback is still running re-arms the timer instead of
	// starting a second callback.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous run still in progress, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.ClearScreen {
			fmt.Fprint(w.stdout, "\033[2J\033[H")
		}

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Warn("run after change failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("failed to close watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed unexpectedly")
			}

			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name, rel)
			}
			if w.isIgnored(rel) || !w.matches(rel) {
				continue
			}

			mu.Lock()
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// addDirectories registers BaseDir and its non-ignored subdirectories.
// Inaccessible directories are skipped.
func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "error", err)
			return nil //nolint:nilerr // keep walking past unreadable directories
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil //nolint:nilerr // not under BaseDir
		}
		if rel != "." && w.isIgnoredDir(rel) {
			return filepath.SkipDir
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup.
func (w *Watcher) maybeAddDir(path, rel string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || w.isIgnoredDir(rel) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("failed to watch new directory", "path", path, "error", err)
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, filepath.ToSlash(rel))
}

// isIgnoredDir also matches directory-only patterns such as "target/**".
func (w *Watcher) isIgnoredDir(rel string) bool {
	normalized := filepath.ToSlash(rel)
	return matchAny(w.ignores, normalized) || matchAny(w.ignores, normalized+"/")
}

func (w *Watcher) matches(rel string) bool {
	return matchAny(w.patterns, filepath.ToSlash(rel))
}

func matchAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, path); err == nil && matched {
			return true
		}
	}
	return false
}
