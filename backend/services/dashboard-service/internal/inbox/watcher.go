package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/upload"
)

// Uploader submits a document for ingestion.
type Uploader interface {
	Upload(ctx context.Context, file *upload.File) upload.Result
}

// Watcher ingests PDFs dropped into a directory.
// A file is uploaded once it has stopped changing for the settle delay.
type Watcher struct {
	dir      string
	settle   time.Duration
	uploader Uploader
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]struct{}
	wg      sync.WaitGroup
}

// New creates a watcher for dir.
func New(dir string, settle time.Duration, uploader Uploader, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settle < 0 {
		settle = 0
	}
	return &Watcher{
		dir:      dir,
		settle:   settle,
		uploader: uploader,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		seen:     make(map[string]struct{}),
	}
}

// Run watches the directory until ctx is cancelled.
// Files already present are ingested after the watch is in place.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching upload inbox", zap.String("dir", w.dir))

	if err := w.Backfill(ctx); err != nil {
		w.logger.Warn("inbox backfill failed", zap.Error(err))
	}

	defer w.drain()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if evt.Has(fsnotify.Create) || evt.Has(fsnotify.Write) {
				if isPDF(evt.Name) {
					w.schedule(ctx, evt.Name)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

// Backfill ingests PDFs already in the directory.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(w.dir, "*"))
	if err != nil {
		return err
	}
	for _, path := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isPDF(path) {
			w.ingest(ctx, path)
		}
	}
	return nil
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}

	var t *time.Timer
	w.wg.Add(1)
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
	w.pending[path] = t
}

// drain cancels queued uploads and waits for running ones.
func (w *Watcher) drain() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) ingest(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())

	w.mu.Lock()
	if _, done := w.seen[key]; done {
		w.mu.Unlock()
		return false
	}
	w.seen[key] = struct{}{}
	w.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		w.forget(key)
		w.logger.Warn("open inbox file", zap.String("path", path), zap.Error(err))
		return false
	}
	defer f.Close()

	res := w.uploader.Upload(ctx, &upload.File{Name: filepath.Base(path), Content: f})
	if !res.OK {
		w.forget(key)
		w.logger.Warn("inbox upload failed", zap.String("path", path), zap.String("message", res.Message))
		return false
	}
	w.logger.Info("inbox file ingested", zap.String("path", path), zap.String("message", res.Message))
	return true
}

func (w *Watcher) forget(key string) {
	w.mu.Lock()
	delete(w.seen, key)
	w.mu.Unlock()
}

func isPDF(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
