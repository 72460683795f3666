// Package export renders a tenant's documents with their extracted
// metadata as JSON, CSV, or XLSX downloads.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docsift/docsift/internal/models"
	"github.com/docsift/docsift/internal/store"
)

// exportPageSize bounds one export to a single large page.
const exportPageSize = 10000

// csvHeader is the column order shared by the CSV and XLSX renderings.
var csvHeader = []string{
	"ID", "Filename", "Status", "File Size (bytes)", "MIME Type",
	"Document Type", "Pages", "Words", "Language",
	"Dates", "Amounts", "Companies", "Text Preview",
	"Created At", "Processed At",
}

// Service renders document exports for one tenant at a time.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) collect(ctx context.Context, tenantID int64) ([]*models.Document, error) {
	page, err := s.store.List(ctx, tenantID, "", 1, exportPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return page.Items, nil
}

// jsonRecord is the export shape for one document.
type jsonRecord struct {
	ID          int64                     `json:"id"`
	Filename    string                    `json:"filename"`
	Status      models.Status             `json:"status"`
	FileSize    int64                     `json:"file_size"`
	MimeType    string                    `json:"mime_type"`
	CreatedAt   string                    `json:"created_at"`
	ProcessedAt *string                   `json:"processed_at"`
	Metadata    *models.ExtractedMetadata `json:"extracted_metadata"`
}

// JSON writes all of the tenant's documents as an indented JSON array.
func (s *Service) JSON(ctx context.Context, tenantID int64, w io.Writer) error {
	docs, err := s.collect(ctx, tenantID)
	if err != nil {
		return err
	}
	records := make([]jsonRecord, 0, len(docs))
	for _, doc := range docs {
		rec := jsonRecord{
			ID:        doc.ID,
			Filename:  doc.Filename,
			Status:    doc.Status,
			FileSize:  doc.FileSize,
			MimeType:  doc.MimeType,
			CreatedAt: doc.CreatedAt.Format(time.RFC3339),
			Metadata:  doc.Metadata,
		}
		if doc.ProcessedAt != nil {
			ts := doc.ProcessedAt.Format(time.RFC3339)
			rec.ProcessedAt = &ts
		}
		records = append(records, rec)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// CSV writes all of the tenant's documents as CSV with a header row.
func (s *Service) CSV(ctx context.Context, tenantID int64, w io.Writer) error {
	docs, err := s.collect(ctx, tenantID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, doc := range docs {
		if err := cw.Write(csvRow(doc)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes all of the tenant's documents as a single-sheet workbook.
func (s *Service) XLSX(ctx context.Context, tenantID int64, w io.Writer) error {
	docs, err := s.collect(ctx, tenantID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Documents"
	f.SetSheetName(f.GetSheetName(0), sheet)

	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write XLSX header: %w", err)
	}
	for i, doc := range docs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cols := csvRow(doc)
		row := make([]interface{}, len(cols))
		for j, c := range cols {
			row[j] = c
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write XLSX row: %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write XLSX: %w", err)
	}
	return nil
}

func csvRow(doc *models.Document) []string {
	var (
		docType, pages, words, language string
		dates, amounts, companies, prev string
	)
	if md := doc.Metadata; md != nil {
		docType = md.DocumentType
		pages = fmt.Sprintf("%d", md.PageCount)
		words = fmt.Sprintf("%d", md.WordCount)
		language = md.Language
		dates = strings.Join(md.Entities.Dates, ", ")
		amounts = strings.Join(md.Entities.Amounts, ", ")
		companies = strings.Join(md.Entities.Companies, ", ")
		prev = md.TextPreview
		if len(prev) > 200 {
			prev = prev[:200]
		}
	}
	processedAt := ""
	if doc.ProcessedAt != nil {
		processedAt = doc.ProcessedAt.Format(time.RFC3339)
	}
	return []string{
		fmt.Sprintf("%d", doc.ID),
		doc.Filename,
		string(doc.Status),
		fmt.Sprintf("%d", doc.FileSize),
		doc.MimeType,
		docType,
		pages,
		words,
		language,
		dates,
		amounts,
		companies,
		prev,
		doc.CreatedAt.Format(time.RFC3339),
		processedAt,
	}
}
