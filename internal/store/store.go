// Package store owns document lifecycle persistence and the status state
// machine. It is the single code path allowed to mutate a document's status.
package store

import (
	"context"
	"errors"

	"github.com/docsift/docsift/internal/models"
)

// ErrNotFound is returned when a document does not exist for the given
// tenant. A document owned by a different tenant is indistinguishable from
// one that does not exist.
var ErrNotFound = errors.New("document not found")

// ErrInvalidTransition is returned when a status change violates the
// lifecycle state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// CreateInput carries the fields needed to create a document in pending state.
type CreateInput struct {
	TenantID int64
	UserID   int64
	Filename string
	FileRef  string
	FileSize int64
	MimeType string
}

// Store defines tenant-scoped document lifecycle operations.
type Store interface {
	// Create inserts a new document in pending state.
	Create(ctx context.Context, in CreateInput) (*models.Document, error)

	// Get returns the document with the given id owned by tenantID, or
	// ErrNotFound. The tenant filter is applied in the same query as the id.
	Get(ctx context.Context, id, tenantID int64) (*models.Document, error)

	// List returns one page of the tenant's documents ordered by creation
	// time descending. statusFilter narrows by status when non-empty. Page
	// bounds (page >= 1, 1 <= pageSize <= 100) are validated by the caller.
	List(ctx context.Context, tenantID int64, statusFilter models.Status, page, pageSize int) (*models.DocumentPage, error)

	// Transition moves a document to a new status, writing metadata on
	// completed and errMessage on failed. It validates ownership and the
	// state machine, stamps processed_at only when entering completed, and
	// bumps updated_at. The whole change applies atomically or not at all.
	Transition(ctx context.Context, id, tenantID int64, to models.Status, metadata *models.ExtractedMetadata, errMessage string) (*models.Document, error)

	// CountByStatus returns the tenant's document counts keyed by status.
	CountByStatus(ctx context.Context, tenantID int64) (map[models.Status]int, error)

	Close() error
}
