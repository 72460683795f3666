// Package models defines core data structures for documents, extracted
// metadata, and entities.
package models

import (
	"fmt"
	"time"
)

// Status is the processing state of a document. It is a closed set; the
// string form is the wire/database representation and ParseStatus is the
// single conversion point back from it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus converts a wire string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) String() string { return string(s) }

// Terminal reports whether no further transition is expected from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidTransition reports whether moving from one status to another is
// allowed. Transitions are one-directional (pending -> processing ->
// completed) except that failed is reachable from any state. Re-applying a
// terminal status to itself is allowed so that terminal writes are idempotent.
func ValidTransition(from, to Status) bool {
	if from == to {
		return from.Terminal()
	}
	switch to {
	case StatusProcessing:
		return from == StatusPending
	case StatusCompleted:
		return from == StatusProcessing
	case StatusFailed:
		return true
	}
	return false
}

// Document is a stored document record. Documents belong to exactly one
// tenant; every read and write is scoped by TenantID.
type Document struct {
	ID           int64              `json:"id"`
	TenantID     int64              `json:"tenant_id"`
	UserID       int64              `json:"uploaded_by_user_id"`
	Filename     string             `json:"filename"`
	FileRef      string             `json:"-"`
	FileSize     int64              `json:"file_size"`
	MimeType     string             `json:"mime_type,omitempty"`
	Status       Status             `json:"status"`
	Metadata     *ExtractedMetadata `json:"extracted_metadata,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty"`
}

// ExtractedMetadata is the structured result of one successful pipeline run.
// It is written exactly once, on the transition into completed, and is
// immutable afterwards. The JSON shape is part of the export contract.
type ExtractedMetadata struct {
	PageCount           int      `json:"page_count"`
	WordCount           int      `json:"word_count"`
	SentenceCount       int      `json:"sentence_count"`
	AvgWordsPerSentence float64  `json:"avg_words_per_sentence"`
	Language            string   `json:"language"`
	DocumentType        string   `json:"document_type"`
	TextPreview         string   `json:"extracted_text_preview"`
	Summary             string   `json:"summary"`
	Entities            Entities `json:"entities"`
	ProcessingSeconds   float64  `json:"processing_time_seconds"`
	TextLength          int      `json:"text_length"`
	HasStructuredData   bool     `json:"has_structured_data"`
	ContentCategories   []string `json:"content_categories"`
}

// Entity class caps. Lists are deduplicated, sorted, and truncated to these.
const (
	MaxDates     = 15
	MaxAmounts   = 15
	MaxCompanies = 15
	MaxEmails    = 10
	MaxPhones    = 10
	MaxURLs      = 10
	MaxKeywords  = 20
)

// Entities maps entity classes to ordered sets of extracted strings.
type Entities struct {
	Dates        []string `json:"dates"`
	Amounts      []string `json:"amounts"`
	Companies    []string `json:"companies"`
	Emails       []string `json:"emails"`
	PhoneNumbers []string `json:"phone_numbers"`
	URLs         []string `json:"urls"`
	Keywords     []string `json:"keywords"`
}

// Empty reports whether no class has any entries.
func (e *Entities) Empty() bool {
	return len(e.Dates) == 0 && len(e.Amounts) == 0 && len(e.Companies) == 0 &&
		len(e.Emails) == 0 && len(e.PhoneNumbers) == 0 && len(e.URLs) == 0 &&
		len(e.Keywords) == 0
}

// DocumentPage is one page of a tenant's document listing.
type DocumentPage struct {
	Items      []*Document `json:"items"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}
