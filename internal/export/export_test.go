package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/docsift/docsift/internal/models"
	"github.com/docsift/docsift/internal/store"
)

func seedStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	doc, err := st.Create(ctx, store.CreateInput{
		TenantID: 1, UserID: 1, Filename: "invoice.pdf",
		FileRef: "tenant_1/a.pdf", FileSize: 1024, MimeType: "application/pdf",
	})
	if err != nil {
		t.Fatal(err)
	}
	md := &models.ExtractedMetadata{
		PageCount:    2,
		WordCount:    340,
		Language:     "en",
		DocumentType: "invoice",
		TextPreview:  "Invoice for services rendered",
		Entities: models.Entities{
			Dates:     []string{"2024-03-01"},
			Amounts:   []string{"$1,234.56"},
			Companies: []string{"Acme Widgets Inc"},
		},
	}
	if _, err := st.Transition(ctx, doc.ID, 1, models.StatusProcessing, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Transition(ctx, doc.ID, 1, models.StatusCompleted, md, ""); err != nil {
		t.Fatal(err)
	}

	// Pending document without metadata, same tenant.
	if _, err := st.Create(ctx, store.CreateInput{
		TenantID: 1, UserID: 1, Filename: "notes.txt",
		FileRef: "tenant_1/b.txt", FileSize: 10,
	}); err != nil {
		t.Fatal(err)
	}
	// Foreign tenant document must never appear in tenant 1 exports.
	if _, err := st.Create(ctx, store.CreateInput{
		TenantID: 2, UserID: 9, Filename: "secret.txt",
		FileRef: "tenant_2/c.txt", FileSize: 10,
	}); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestJSONExport(t *testing.T) {
	st := seedStore(t)
	svc := NewService(st)

	var buf bytes.Buffer
	if err := svc.JSON(context.Background(), 1, &buf); err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	for _, rec := range records {
		if rec["filename"] == "secret.txt" {
			t.Error("foreign tenant document leaked into export")
		}
	}
	// List returns newest first, so the pending document leads.
	if records[0]["filename"] != "notes.txt" {
		t.Errorf("first record = %v", records[0]["filename"])
	}
	if records[0]["extracted_metadata"] != nil {
		t.Error("pending document should export null metadata")
	}
	if records[1]["extracted_metadata"] == nil {
		t.Error("completed document should export its metadata")
	}
}

func TestCSVExport(t *testing.T) {
	st := seedStore(t)
	svc := NewService(st)

	var buf bytes.Buffer
	if err := svc.CSV(context.Background(), 1, &buf); err != nil {
		t.Fatalf("CSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][5] != "Document Type" || rows[0][14] != "Processed At" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	completed := rows[2]
	if completed[1] != "invoice.pdf" {
		t.Errorf("filename column = %q", completed[1])
	}
	if completed[5] != "invoice" {
		t.Errorf("document type column = %q", completed[5])
	}
	if completed[10] != "$1,234.56" {
		t.Errorf("amounts column = %q", completed[10])
	}
	if completed[14] == "" {
		t.Error("processed at column empty for completed document")
	}
	pending := rows[1]
	if pending[5] != "" || pending[14] != "" {
		t.Errorf("pending row should have empty metadata columns: %v", pending)
	}
}

func TestXLSXExport(t *testing.T) {
	st := seedStore(t)
	svc := NewService(st)

	var buf bytes.Buffer
	if err := svc.XLSX(context.Background(), 1, &buf); err != nil {
		t.Fatalf("XLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("export is not a valid workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Documents")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "ID" {
		t.Errorf("header = %v", rows[0])
	}
	var filenames []string
	for _, row := range rows[1:] {
		filenames = append(filenames, row[1])
	}
	joined := strings.Join(filenames, ",")
	if !strings.Contains(joined, "invoice.pdf") || !strings.Contains(joined, "notes.txt") {
		t.Errorf("filenames = %v", filenames)
	}
	if strings.Contains(joined, "secret.txt") {
		t.Error("foreign tenant document leaked into export")
	}
}
