// Package watcher processes screenshots dropped into a directory.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/logger"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/service"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/storage"
)

// Processor is the part of the pipeline the watcher drives.
type Processor interface {
	ProcessImage(ctx context.Context, image []byte, ref string) (*service.Verdict, error)
}

// Options configures a Watcher.
type Options struct {
	Dir     string
	Workers int
	// Settle is how long a file must go without new events before it is processed.
	Settle        time.Duration
	Tick          time.Duration
	MaxImageBytes int64
	// KeepFiles leaves processed files in place.
	KeepFiles bool
}

// DefaultOptions returns watcher defaults for dir
func DefaultOptions(dir string) Options {
	return Options{
		Dir:           dir,
		Workers:       2,
		Settle:        300 * time.Millisecond,
		Tick:          250 * time.Millisecond,
		MaxImageBytes: storage.DefaultMaxImageBytes,
	}
}

// Stats counts files handled by the watcher.
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Watcher feeds image files from a directory into a Processor.
type Watcher struct {
	opts   Options
	proc   Processor
	source *storage.LocalImageSource
	pool   *analyzer.WorkerPool

	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a watcher; the directory is created if missing
func New(proc Processor, opts Options) (*Watcher, error) {
	if proc == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	def := DefaultOptions(opts.Dir)
	if opts.Settle <= 0 {
		opts.Settle = def.Settle
	}
	if opts.Tick <= 0 {
		opts.Tick = def.Tick
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = def.MaxImageBytes
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create watch directory: %w", err)
	}

	source, err := storage.NewLocalImageSource(opts.Dir, opts.MaxImageBytes)
	if err != nil {
		return nil, err
	}

	pool := analyzer.NewWorkerPool(opts.Workers)
	pool.OnPanic(func(recovered string) {
		logger.WithField("panic", recovered).Error("Screenshot job panicked")
	})

	return &Watcher{opts: opts, proc: proc, source: source, pool: pool}, nil
}

// Stats returns the file counters
func (w *Watcher) Stats() Stats {
	return Stats{Processed: w.processed.Load(), Failed: w.failed.Load()}
}

// Run processes the files already present, then watches for new ones until
// ctx is done. Queued files are finished before Run returns. A Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}

	w.pool.Start()
	defer func() {
		w.pool.Close()
		w.pool.Wait()
	}()

	existing, err := ExistingImages(w.opts.Dir)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"dir":      w.opts.Dir,
		"existing": len(existing),
		"workers":  w.pool.Workers(),
	}).Info("Watching for screenshots")
	for _, path := range existing {
		w.submit(ctx, path)
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsImageFile(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for path, seen := range pending {
				if now.Sub(seen) >= w.opts.Settle {
					delete(pending, path)
					w.submit(ctx, path)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("File watcher error")
		}
	}
}

func (w *Watcher) submit(ctx context.Context, path string) {
	w.pool.Submit(func() {
		_ = w.ProcessFile(ctx, path)
	})
}

// ProcessFile runs one file through the pipeline and removes it afterwards,
// whatever the outcome. Skips are not counted as failures.
func (w *Watcher) ProcessFile(ctx context.Context, path string) error {
	ref := filepath.Base(path)
	entry := logger.WithField("reference", ref)

	// Left in place so the next run picks it up.
	if err := ctx.Err(); err != nil {
		return apperrors.NewTimeoutError("watcher stopped before processing", err).WithContext("", ref)
	}

	data, err := w.source.Fetch(ctx, ref)
	if err == nil {
		var v *service.Verdict
		v, err = w.proc.ProcessImage(ctx, data, ref)
		if err == nil {
			entry.WithFields(logrus.Fields{
				"candidate":    v.StoreName,
				"is_duplicate": v.IsDuplicate,
				"matched_name": v.MatchedName,
				"score":        v.Score,
			}).Info("Screenshot processed")
		}
	}

	switch {
	case err == nil:
		w.processed.Add(1)
	case apperrors.IsSkip(err):
		w.processed.Add(1)
		entry.WithError(err).Debug("Screenshot skipped")
	default:
		w.failed.Add(1)
		entry.WithError(err).Error("Screenshot failed")
	}

	if !w.opts.KeepFiles {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			entry.WithError(rmErr).Warn("Failed to remove processed file")
		}
	}
	return err
}

// ExistingImages lists image files directly inside dir, sorted by name.
func ExistingImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// IsImageFile reports whether name has a screenshot extension. Hidden and
// partially written files are ignored.
func IsImageFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return true
	}
	return false
}
