// Package ingest watches a drop directory and registers new files as
// uploaded documents for a configured tenant. Events are debounced so a
// file still being written is picked up once, after its last write.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/models"
	"github.com/docsift/docsift/internal/queue"
	"github.com/docsift/docsift/internal/store"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester watches one directory, non-recursively, and turns dropped
// files into pending documents with queued extraction jobs.
type Ingester struct {
	dir        string
	tenantID   int64
	extensions []string
	jobTimeout time.Duration

	store  store.Store
	blobs  *blob.DiskStore
	broker queue.Broker
	logger *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	debounce    time.Duration
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// NewIngester creates an ingester for dir. extensions filter which files
// are picked up (empty = all). All ingested documents belong to tenantID.
func NewIngester(dir string, tenantID int64, extensions []string, jobTimeout time.Duration, st store.Store, blobs *blob.DiskStore, broker queue.Broker, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		dir:         dir,
		tenantID:    tenantID,
		extensions:  extensions,
		jobTimeout:  jobTimeout,
		store:       st,
		blobs:       blobs,
		broker:      broker,
		logger:      logger,
		debounceMap: make(map[string]*time.Timer),
		debounce:    defaultDebounce,
		done:        make(chan struct{}),
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (in *Ingester) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		in.mu.Unlock()
		return err
	}
	if err := watcher.Add(in.dir); err != nil {
		_ = watcher.Close()
		in.mu.Unlock()
		return err
	}
	in.watcher = watcher
	in.started = true
	in.mu.Unlock()

	in.logger.Info("ingest watching directory",
		zap.String("dir", in.dir),
		zap.Int64("tenant_id", in.tenantID))
	go in.run(ctx)
	return nil
}

func (in *Ingester) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			in.handleEvent(ctx, ev)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				in.logger.Debug("ingest watcher error", zap.Error(err))
			}
		}
	}
}

func (in *Ingester) handleEvent(ctx context.Context, ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return
		}
		if !in.matchExtension(ev.Name) {
			return
		}
		in.debounceIngest(ctx, ev.Name)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		in.cancelDebounce(ev.Name)
	}
}

func (in *Ingester) matchExtension(path string) bool {
	if len(in.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range in.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (in *Ingester) debounceIngest(ctx context.Context, path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.debounceMap[path]; ok {
		t.Stop()
	}
	in.debounceMap[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.debounceMap, path)
		in.mu.Unlock()
		in.ingest(ctx, path)
	})
}

func (in *Ingester) cancelDebounce(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.debounceMap[path]; ok {
		t.Stop()
		delete(in.debounceMap, path)
	}
}

// ingest stores one dropped file as a pending document and enqueues its
// extraction job. When the queue refuses the job the document is marked
// failed so the file does not sit in pending forever.
func (in *Ingester) ingest(ctx context.Context, path string) {
	filename := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		in.logger.Warn("ingest open failed", zap.String("path", path), zap.Error(err))
		return
	}
	ref, size, err := in.blobs.Save(in.tenantID, filename, f)
	f.Close()
	if err != nil {
		in.logger.Warn("ingest save failed", zap.String("path", path), zap.Error(err))
		return
	}

	doc, err := in.store.Create(ctx, store.CreateInput{
		TenantID: in.tenantID,
		Filename: filename,
		FileRef:  ref,
		FileSize: size,
	})
	if err != nil {
		in.logger.Warn("ingest create failed", zap.String("path", path), zap.Error(err))
		_ = in.blobs.Remove(ref)
		return
	}

	if _, err := in.broker.Enqueue(ctx, queue.Job{
		DocumentID: doc.ID,
		TenantID:   in.tenantID,
		Timeout:    in.jobTimeout,
	}); err != nil {
		in.logger.Warn("ingest enqueue failed", zap.Int64("document_id", doc.ID), zap.Error(err))
		_, _ = in.store.Transition(ctx, doc.ID, in.tenantID, models.StatusFailed, nil, "failed to queue document for processing")
		return
	}

	in.logger.Info("ingested document",
		zap.Int64("document_id", doc.ID),
		zap.String("filename", filename),
		zap.Int64("size", size))

	if err := os.Remove(path); err != nil {
		in.logger.Debug("ingest cleanup failed", zap.String("path", path), zap.Error(err))
	}
}

// Stop stops watching. Safe to call more than once.
func (in *Ingester) Stop() {
	in.stopOnce.Do(func() {
		close(in.done)
		in.mu.Lock()
		defer in.mu.Unlock()
		if in.watcher != nil {
			_ = in.watcher.Close()
		}
		for path, t := range in.debounceMap {
			t.Stop()
			delete(in.debounceMap, path)
		}
	})
}
