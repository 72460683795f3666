package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/docsift/docsift/internal/models"
	"github.com/docsift/docsift/internal/store"
	"go.uber.org/zap"
)

// Processor runs the metadata pipeline for one file.
type Processor interface {
	Process(path, filename string) (*models.ExtractedMetadata, string)
}

// PathResolver turns an opaque file reference back into a local path.
type PathResolver interface {
	Path(ref string) (string, error)
}

// Indexer receives extracted text after a successful run. Indexing is
// best-effort; failures never change the document's outcome.
type Indexer interface {
	Index(docID, tenantID int64, filename, text string) error
}

// Worker consumes jobs and drives each document through
// processing -> completed/failed. All mutation goes through the store's
// Transition; nothing escapes the loop as a panic.
type Worker struct {
	broker    Broker
	store     store.Store
	blobs     PathResolver
	processor Processor
	indexer   Indexer // optional
	logger    *zap.Logger
}

// NewWorker returns a worker over the given collaborators. indexer may be
// nil; logger may be nil.
func NewWorker(broker Broker, st store.Store, blobs PathResolver, processor Processor, indexer Indexer, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		broker:    broker,
		store:     st,
		blobs:     blobs,
		processor: processor,
		indexer:   indexer,
		logger:    logger,
	}
}

// Run blocks consuming jobs until ctx is cancelled or the broker closes.
// Job failures are recorded on the document and never abort the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, err := w.broker.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, ErrUnavailable) {
				return nil
			}
			return err
		}
		w.handle(ctx, job)
		w.broker.Done(job)
	}
}

// pipelineResult is the worker's explicit failure signal: a success carries
// metadata and text, a failure carries a message for the document record.
type pipelineResult struct {
	metadata *models.ExtractedMetadata
	text     string
	err      error
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	log := w.logger.With(
		zap.Int64("document_id", job.DocumentID),
		zap.Int64("tenant_id", job.TenantID),
	)

	doc, err := w.store.Get(ctx, job.DocumentID, job.TenantID)
	if err != nil {
		log.Warn("job references unknown document", zap.Error(err))
		return
	}

	if _, err := w.store.Transition(ctx, job.DocumentID, job.TenantID, models.StatusProcessing, nil, ""); err != nil {
		// Already processing or terminal: a coalesced duplicate or a
		// re-delivered job. Never run the pipeline a second time.
		log.Warn("skipping job, document not in pending state",
			zap.String("status", doc.Status.String()), zap.Error(err))
		return
	}

	res := w.runPipeline(doc, job.Timeout, log)
	if res == nil {
		// Timed out: the job is abandoned and the document stays in
		// processing. Known limitation, reported via status counts.
		return
	}

	if res.err != nil {
		if _, terr := w.store.Transition(ctx, job.DocumentID, job.TenantID, models.StatusFailed, nil, res.err.Error()); terr != nil {
			log.Error("failed to record failure", zap.Error(terr))
		}
		log.Info("document failed", zap.String("error", res.err.Error()))
		return
	}

	if _, err := w.store.Transition(ctx, job.DocumentID, job.TenantID, models.StatusCompleted, res.metadata, ""); err != nil {
		log.Error("failed to record completion", zap.Error(err))
		return
	}
	log.Info("document completed",
		zap.String("document_type", res.metadata.DocumentType),
		zap.Int("word_count", res.metadata.WordCount))

	if w.indexer != nil && res.text != "" {
		if err := w.indexer.Index(doc.ID, doc.TenantID, doc.Filename, res.text); err != nil {
			log.Warn("search indexing failed", zap.Error(err))
		}
	}
}

// runPipeline executes the pipeline with a panic guard and the job timeout.
// Returns nil when the job timed out (abandoned), a result otherwise.
func (w *Worker) runPipeline(doc *models.Document, timeout time.Duration, log *zap.Logger) *pipelineResult {
	path, err := w.blobs.Path(doc.FileRef)
	if err != nil {
		return &pipelineResult{err: fmt.Errorf("invalid file reference: %w", err)}
	}
	if _, err := os.Stat(path); err != nil {
		return &pipelineResult{err: fmt.Errorf("file not found: %s", doc.FileRef)}
	}

	done := make(chan *pipelineResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &pipelineResult{err: fmt.Errorf("pipeline panic: %v", r)}
			}
		}()
		md, text := w.processor.Process(path, doc.Filename)
		done <- &pipelineResult{metadata: md, text: text}
	}()

	if timeout <= 0 {
		return <-done
	}
	select {
	case res := <-done:
		return res
	case <-time.After(timeout):
		log.Warn("job timed out, abandoning", zap.Duration("timeout", timeout))
		return nil
	}
}
