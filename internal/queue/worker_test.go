package queue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/models"
	"github.com/docsift/docsift/internal/store"
)

type stubProcessor struct {
	metadata *models.ExtractedMetadata
	text     string
	panics   bool
	delay    time.Duration
}

func (s *stubProcessor) Process(path, filename string) (*models.ExtractedMetadata, string) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panics {
		panic("extractor blew up")
	}
	return s.metadata, s.text
}

type recordingIndexer struct {
	docIDs []int64
}

func (r *recordingIndexer) Index(docID, tenantID int64, filename, text string) error {
	r.docIDs = append(r.docIDs, docID)
	return nil
}

type workerFixture struct {
	store  *store.SQLiteStore
	blobs  *blob.DiskStore
	broker *MemoryBroker
}

func newFixture(t *testing.T) *workerFixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	b := NewMemoryBroker(8, nil)
	t.Cleanup(b.Close)
	return &workerFixture{store: st, blobs: blobs, broker: b}
}

func (f *workerFixture) createDoc(t *testing.T, tenantID int64, filename, content string) *models.Document {
	t.Helper()
	ref, size, err := f.blobs.Save(tenantID, filename, strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := f.store.Create(context.Background(), store.CreateInput{
		TenantID: tenantID,
		UserID:   1,
		Filename: filename,
		FileRef:  ref,
		FileSize: size,
	})
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestWorkerCompletesDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDoc(t, 3, "empty.txt", "")

	md := &models.ExtractedMetadata{Language: "en", DocumentType: "document"}
	idx := &recordingIndexer{}
	w := NewWorker(f.broker, f.store, f.blobs, &stubProcessor{metadata: md, text: "hello"}, idx, nil)

	w.handle(ctx, &Job{DocumentID: doc.ID, TenantID: 3})

	got, err := f.store.Get(ctx, doc.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s", got.Status)
	}
	if got.Metadata == nil {
		t.Error("metadata missing on completed document")
	}
	if got.ProcessedAt == nil {
		t.Error("processed_at missing")
	}
	if len(idx.docIDs) != 1 || idx.docIDs[0] != doc.ID {
		t.Errorf("indexer calls = %v", idx.docIDs)
	}
}

func TestWorkerPanicBecomesFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDoc(t, 1, "doc.txt", "content")

	w := NewWorker(f.broker, f.store, f.blobs, &stubProcessor{panics: true}, nil, nil)
	w.handle(ctx, &Job{DocumentID: doc.ID, TenantID: 1})

	got, err := f.store.Get(ctx, doc.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "pipeline panic") {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
}

func TestWorkerMissingFileFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDoc(t, 1, "doc.txt", "content")

	path, err := f.blobs.Path(doc.FileRef)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	w := NewWorker(f.broker, f.store, f.blobs, &stubProcessor{metadata: &models.ExtractedMetadata{}}, nil, nil)
	w.handle(ctx, &Job{DocumentID: doc.ID, TenantID: 1})

	got, _ := f.store.Get(ctx, doc.ID, 1)
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "file not found") {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
}

func TestWorkerSkipsTerminalDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDoc(t, 1, "doc.txt", "content")

	md := &models.ExtractedMetadata{WordCount: 5}
	if _, err := f.store.Transition(ctx, doc.ID, 1, models.StatusProcessing, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Transition(ctx, doc.ID, 1, models.StatusCompleted, md, ""); err != nil {
		t.Fatal(err)
	}

	// A re-delivered job for a terminal document must not reprocess it.
	other := &models.ExtractedMetadata{WordCount: 99}
	w := NewWorker(f.broker, f.store, f.blobs, &stubProcessor{metadata: other}, nil, nil)
	w.handle(ctx, &Job{DocumentID: doc.ID, TenantID: 1})

	got, _ := f.store.Get(ctx, doc.ID, 1)
	if got.Metadata.WordCount != 5 {
		t.Errorf("metadata overwritten: %+v", got.Metadata)
	}
}

func TestWorkerRunLoop(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doc := f.createDoc(t, 2, "a.txt", "text")

	if _, err := f.broker.Enqueue(ctx, Job{DocumentID: doc.ID, TenantID: 2}); err != nil {
		t.Fatal(err)
	}

	w := NewWorker(f.broker, f.store, f.blobs, &stubProcessor{metadata: &models.ExtractedMetadata{}}, nil, nil)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		got, err := f.store.Get(context.Background(), doc.ID, 2)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status.Terminal() {
			if got.Status != models.StatusCompleted {
				t.Errorf("status = %s", got.Status)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("document never reached a terminal status")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestWorkerTimeoutAbandonsJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDoc(t, 1, "slow.txt", "content")

	w := NewWorker(f.broker, f.store, f.blobs, &stubProcessor{metadata: &models.ExtractedMetadata{}, delay: 300 * time.Millisecond}, nil, nil)
	w.handle(ctx, &Job{DocumentID: doc.ID, TenantID: 1, Timeout: 30 * time.Millisecond})

	// Abandoned: the document stays in processing, the surfaced gap.
	got, _ := f.store.Get(ctx, doc.ID, 1)
	if got.Status != models.StatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
}
