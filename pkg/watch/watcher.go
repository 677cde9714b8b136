package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/safety"
	"mercator-hq/aegis/pkg/telemetry/logging"
)

// ErrFileTooLarge is returned for files over the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// Analyzer screens a request. *analyzer.Analyzer satisfies it.
type Analyzer interface {
	AnalyzeRequest(ctx context.Context, req safety.Request) (*safety.Score, error)
}

// Result is the outcome of screening one file.
type Result struct {
	Path     string
	Score    *safety.Score
	Err      error
	Duration time.Duration
}

// Handler receives screening results. It may be called from several
// goroutines at once.
type Handler func(Result)

// Config contains watcher settings.
type Config struct {
	// Dir is the directory to watch.
	Dir string

	// Extensions lists the file extensions to screen, including the dot.
	// Matching is case-insensitive.
	Extensions []string

	// Debounce is how long a file must be quiet before it is screened.
	Debounce time.Duration

	// MaxFileSize is the largest file screened, in bytes. Zero or less
	// disables the limit.
	MaxFileSize int64

	// SkipHidden ignores files and directories whose name starts with a dot.
	SkipHidden bool
}

// FromConfig builds a watcher Config for dir from the application config.
func FromConfig(cfg config.WatchConfig, dir string) Config {
	return Config{
		Dir:         dir,
		Extensions:  append([]string(nil), cfg.Extensions...),
		Debounce:    cfg.Debounce,
		MaxFileSize: cfg.MaxFileSize,
		SkipHidden:  true,
	}
}

// Watcher screens files written to a directory.
type Watcher struct {
	cfg      Config
	analyzer Analyzer
	fsw      *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped sync.Once
}

// New creates a watcher. A nil logger uses slog.Default().
func New(cfg Config, a Analyzer, logger *slog.Logger) (*Watcher, error) {
	if a == nil {
		return nil, fmt.Errorf("watcher requires an analyzer")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory cannot be empty")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = config.DefaultWatchDebounce
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = append([]string(nil), config.DefaultWatchExtensions...)
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:      cfg,
		analyzer: a,
		fsw:      fsw,
		debounce: NewDebouncer(cfg.Debounce),
		logger:   logger.With("component", "watch"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, screening each
// matching file after its writes settle. In-flight screenings finish
// before Watch returns.
func (w *Watcher) Watch(ctx context.Context, handle Handler) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)
	defer w.debounce.Stop()

	if err := w.addTree(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}

	w.logger.Info("directory watcher started",
		"dir", w.cfg.Dir,
		"extensions", w.cfg.Extensions,
		"debounce_ms", w.cfg.Debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("directory watcher stopped", "reason", ctx.Err())
			return nil

		case <-w.stopCh:
			w.logger.Info("directory watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(ctx, event, handle)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("directory watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, handle Handler) {
	if event.Has(fsnotify.Create) && w.isNewDir(event.Name) {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
		}
		return
	}

	if !w.shouldScreen(event) {
		return
	}

	w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())

	path := event.Name
	w.debounce.Trigger(path, func() {
		start := time.Now()
		score, err := w.ScreenFile(ctx, path)
		if errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("file removed before screening", "path", path)
			return
		}
		handle(Result{Path: path, Score: score, Err: err, Duration: time.Since(start)})
	})
}

// ScreenFile reads path and screens its contents. The file path is
// attached to the request context as the log source.
func (w *Watcher) ScreenFile(ctx context.Context, path string) (*safety.Score, error) {
	text, err := readLimited(path, w.cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithSource(ctx, path)
	score, err := w.analyzer.AnalyzeRequest(ctx, safety.Request{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to screen %s: %w", path, err)
	}
	return score, nil
}

// Stop stops a running Watch and releases the fsnotify watcher. It is
// safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopped.Do(func() {
		close(w.stopCh)

		w.mu.Lock()
		running := w.running
		w.mu.Unlock()
		if running {
			<-w.doneCh
		}

		w.debounce.Stop()
		if cerr := w.fsw.Close(); cerr != nil {
			err = fmt.Errorf("failed to close watcher: %w", cerr)
		}
	})
	return err
}

// addTree watches dir and every subdirectory beneath it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.hidden(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

func (w *Watcher) isNewDir(path string) bool {
	if w.hidden(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) shouldScreen(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if w.hidden(event.Name) {
		return false
	}
	return w.hasExtension(event.Name)
}

func (w *Watcher) hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range w.cfg.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func (w *Watcher) hidden(path string) bool {
	return w.cfg.SkipHidden && strings.HasPrefix(filepath.Base(path), ".")
}

// readLimited reads a regular file, failing with ErrFileTooLarge when it
// is larger than limit bytes.
func readLimited(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}
	if limit > 0 && info.Size() > limit {
		return "", fmt.Errorf("%s (%d bytes): %w", path, info.Size(), ErrFileTooLarge)
	}

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", fmt.Errorf("%s: %w", path, ErrFileTooLarge)
	}
	return string(data), nil
}
