// Package store provides the SQLite implementation of the Store interface.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/docsift/docsift/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	// Serialize writers so transitions on the same row never interleave.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		file_ref TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		mime_type TEXT,
		status TEXT NOT NULL,
		metadata TEXT,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_tenant_status ON documents(tenant_id, status);
	`
	_, err := db.Exec(schema)
	return err
}

// Create inserts a new document in pending state.
func (s *SQLiteStore) Create(ctx context.Context, in CreateInput) (*models.Document, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (tenant_id, user_id, filename, file_ref, file_size, mime_type, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.TenantID, in.UserID, in.Filename, in.FileRef, in.FileSize, in.MimeType,
		models.StatusPending.String(), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Document{
		ID:        id,
		TenantID:  in.TenantID,
		UserID:    in.UserID,
		Filename:  in.Filename,
		FileRef:   in.FileRef,
		FileSize:  in.FileSize,
		MimeType:  in.MimeType,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const docColumns = `id, tenant_id, user_id, filename, file_ref, file_size, mime_type, status, metadata, error_message, created_at, updated_at, processed_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var (
		doc          models.Document
		mimeType     sql.NullString
		metadataJSON sql.NullString
		errMessage   sql.NullString
		statusStr    string
		processedAt  sql.NullTime
	)
	err := row.Scan(&doc.ID, &doc.TenantID, &doc.UserID, &doc.Filename, &doc.FileRef,
		&doc.FileSize, &mimeType, &statusStr, &metadataJSON, &errMessage,
		&doc.CreatedAt, &doc.UpdatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	doc.MimeType = mimeType.String
	doc.ErrorMessage = errMessage.String
	status, err := models.ParseStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("document %d: %w", doc.ID, err)
	}
	doc.Status = status
	if metadataJSON.Valid && metadataJSON.String != "" {
		var md models.ExtractedMetadata
		if err := json.Unmarshal([]byte(metadataJSON.String), &md); err != nil {
			return nil, fmt.Errorf("document %d: unmarshal metadata: %w", doc.ID, err)
		}
		doc.Metadata = &md
	}
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	return &doc, nil
}

// Get returns the document by id, scoped to tenantID. The tenant filter lives
// in the same WHERE clause as the id filter so a foreign tenant's document is
// identical to a missing one.
func (s *SQLiteStore) Get(ctx context.Context, id, tenantID int64) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM documents WHERE id = ? AND tenant_id = ?`,
		id, tenantID,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns one page of the tenant's documents, newest first.
func (s *SQLiteStore) List(ctx context.Context, tenantID int64, statusFilter models.Status, page, pageSize int) (*models.DocumentPage, error) {
	where := `WHERE tenant_id = ?`
	args := []any{tenantID}
	if statusFilter != "" {
		where += ` AND status = ?`
		args = append(args, statusFilter.String())
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+docColumns+` FROM documents `+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, pageSize, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Document, 0, pageSize)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.DocumentPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Transition applies a status change inside a single transaction: validate
// ownership and the state machine against the current row, then write the new
// status plus its conditional fields in one UPDATE.
func (s *SQLiteStore) Transition(ctx context.Context, id, tenantID int64, to models.Status, metadata *models.ExtractedMetadata, errMessage string) (*models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	var currentStr string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM documents WHERE id = ? AND tenant_id = ?`,
		id, tenantID,
	).Scan(&currentStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	current, err := models.ParseStatus(currentStr)
	if err != nil {
		return nil, err
	}
	if !models.ValidTransition(current, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
	}

	now := time.Now().UTC()
	switch to {
	case models.StatusCompleted:
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		// processed_at is stamped once; a repeated completed write keeps it.
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET status = ?, metadata = ?, updated_at = ?,
			 processed_at = COALESCE(processed_at, ?)
			 WHERE id = ? AND tenant_id = ?`,
			to.String(), string(data), now, now, id, tenantID,
		)
		if err != nil {
			return nil, fmt.Errorf("apply completed: %w", err)
		}
	case models.StatusFailed:
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET status = ?, error_message = ?, updated_at = ?
			 WHERE id = ? AND tenant_id = ?`,
			to.String(), errMessage, now, id, tenantID,
		)
		if err != nil {
			return nil, fmt.Errorf("apply failed: %w", err)
		}
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
			to.String(), now, id, tenantID,
		)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", to, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return s.Get(ctx, id, tenantID)
}

// CountByStatus returns the tenant's document counts keyed by status.
func (s *SQLiteStore) CountByStatus(ctx context.Context, tenantID int64) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM documents WHERE tenant_id = ? GROUP BY status`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var statusStr string
		var n int
		if err := rows.Scan(&statusStr, &n); err != nil {
			return nil, err
		}
		status, err := models.ParseStatus(statusStr)
		if err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
