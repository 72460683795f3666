package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/export"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/models"
	"github.com/docsift/docsift/internal/queue"
	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/store"
)

type serverFixture struct {
	srv    *Server
	router http.Handler
	store  *store.SQLiteStore
	broker *queue.MemoryBroker
}

func newServerFixture(t *testing.T, queueSize int) *serverFixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	blobs, err := blob.NewDiskStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatal(err)
	}
	broker := queue.NewMemoryBroker(queueSize, nil)
	t.Cleanup(broker.Close)
	idx, err := search.NewIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	extractor := extract.New(extract.Config{TesseractBinary: "tesseract-not-installed"}, zap.NewNop())

	srv := NewServer(st, blobs, broker, idx, export.NewService(st), extractor,
		time.Minute, &config.ServerConfig{Port: 8080}, zap.NewNop())
	return &serverFixture{srv: srv, router: srv.Router(), store: st, broker: broker}
}

func (f *serverFixture) do(t *testing.T, method, target string, tenant string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, body)
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if tenant != "" {
		r.Header.Set("X-Tenant-ID", tenant)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadCreatesPendingAndEnqueues(t *testing.T) {
	f := newServerFixture(t, 4)

	body, ct := multipartBody(t, "report.txt", "quarterly numbers")
	w := f.do(t, http.MethodPost, "/api/v1/documents", "7", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", doc.Status)
	}
	if doc.TenantID != 7 || doc.Filename != "report.txt" {
		t.Errorf("document = %+v", doc)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job, err := f.broker.Consume(ctx)
	if err != nil {
		t.Fatalf("no job queued: %v", err)
	}
	if job.DocumentID != doc.ID || job.TenantID != 7 {
		t.Errorf("job = %+v", job)
	}
}

func TestUploadAcceptsEmptyFile(t *testing.T) {
	f := newServerFixture(t, 4)

	// A zero-byte upload is still a valid document; the pipeline later
	// completes it with zero counts.
	body, ct := multipartBody(t, "empty.txt", "")
	w := f.do(t, http.MethodPost, "/api/v1/documents", "1", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.FileSize != 0 || doc.Status != models.StatusPending {
		t.Errorf("document = %+v", doc)
	}
}

func TestUploadRecordsUploader(t *testing.T) {
	f := newServerFixture(t, 4)

	body, ct := multipartBody(t, "report.txt", "signed off")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	r.Header.Set("X-Tenant-ID", "7")
	r.Header.Set("X-User-ID", "42")
	r.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.UserID != 42 {
		t.Errorf("uploaded_by_user_id = %d, want 42", doc.UserID)
	}

	stored, err := f.store.Get(context.Background(), doc.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if stored.UserID != 42 {
		t.Errorf("stored uploaded_by_user_id = %d, want 42", stored.UserID)
	}

	for _, user := range []string{"abc", "0", "-1"} {
		body, ct := multipartBody(t, "report.txt", "x")
		r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
		r.Header.Set("X-Tenant-ID", "7")
		r.Header.Set("X-User-ID", user)
		r.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, r)
		if w.Code != http.StatusBadRequest {
			t.Errorf("user %q: status = %d, want 400", user, w.Code)
		}
	}
}

func TestUploadFullQueueMarksFailed(t *testing.T) {
	f := newServerFixture(t, 1)

	body, ct := multipartBody(t, "a.txt", "one")
	if w := f.do(t, http.MethodPost, "/api/v1/documents", "1", body, ct); w.Code != http.StatusCreated {
		t.Fatalf("first upload status = %d", w.Code)
	}
	body, ct = multipartBody(t, "b.txt", "two")
	w := f.do(t, http.MethodPost, "/api/v1/documents", "1", body, ct)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("second upload status = %d, want 500", w.Code)
	}

	counts, err := f.store.CountByStatus(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.StatusFailed] != 1 {
		t.Errorf("failed = %d, want 1", counts[models.StatusFailed])
	}
}

func TestTenantHeaderRequired(t *testing.T) {
	f := newServerFixture(t, 4)

	for _, tenant := range []string{"", "abc", "0", "-3"} {
		w := f.do(t, http.MethodGet, "/api/v1/documents", tenant, nil, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("tenant %q: status = %d, want 400", tenant, w.Code)
		}
	}

	// /health is open.
	w := f.do(t, http.MethodGet, "/health", "", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestGetDocumentTenantIsolation(t *testing.T) {
	f := newServerFixture(t, 4)

	body, ct := multipartBody(t, "secret.txt", "tenant one data")
	w := f.do(t, http.MethodPost, "/api/v1/documents", "1", body, ct)
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}

	url := fmt.Sprintf("/api/v1/documents/%d", doc.ID)
	if w := f.do(t, http.MethodGet, url, "1", nil, ""); w.Code != http.StatusOK {
		t.Errorf("owner status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, url, "2", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("foreign tenant status = %d, want 404", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/documents/notanid", "1", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestListValidation(t *testing.T) {
	f := newServerFixture(t, 4)

	cases := []struct {
		target string
		want   int
	}{
		{"/api/v1/documents", http.StatusOK},
		{"/api/v1/documents?status=pending", http.StatusOK},
		{"/api/v1/documents?status=bogus", http.StatusBadRequest},
		{"/api/v1/documents?page=0", http.StatusBadRequest},
		{"/api/v1/documents?page=abc", http.StatusBadRequest},
		{"/api/v1/documents?page_size=0", http.StatusBadRequest},
		{"/api/v1/documents?page_size=101", http.StatusBadRequest},
		{"/api/v1/documents?page=2&page_size=100", http.StatusOK},
	}
	for _, c := range cases {
		w := f.do(t, http.MethodGet, c.target, "1", nil, "")
		if w.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.target, w.Code, c.want)
		}
	}
}

func TestDownloadReturnsContent(t *testing.T) {
	f := newServerFixture(t, 4)

	body, ct := multipartBody(t, "notes.txt", "hello world")
	w := f.do(t, http.MethodPost, "/api/v1/documents", "1", body, ct)
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/documents/%d/download", doc.ID), "1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "hello world" {
		t.Errorf("body = %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("missing Content-Disposition header")
	}
}

func TestSearchEndpoint(t *testing.T) {
	f := newServerFixture(t, 4)

	body, ct := multipartBody(t, "findings.txt", "unused upload")
	w := f.do(t, http.MethodPost, "/api/v1/documents", "1", body, ct)
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if err := f.srv.searchIdx.Index(doc.ID, 1, doc.Filename, "the aardvark report"); err != nil {
		t.Fatal(err)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/search", "1", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/search?q=aardvark", "1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Total   int `json:"total"`
		Results []struct {
			Document models.Document `json:"document"`
			Score    float64         `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 || out.Results[0].Document.ID != doc.ID {
		t.Errorf("results = %+v", out)
	}

	// Another tenant never sees the hit.
	w = f.do(t, http.MethodGet, "/api/v1/search?q=aardvark", "2", nil, "")
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 0 {
		t.Errorf("foreign tenant total = %d, want 0", out.Total)
	}
}

func TestExportEndpoints(t *testing.T) {
	f := newServerFixture(t, 4)

	body, ct := multipartBody(t, "doc.txt", "content")
	if w := f.do(t, http.MethodPost, "/api/v1/documents", "1", body, ct); w.Code != http.StatusCreated {
		t.Fatal("upload failed")
	}

	cases := []struct {
		target      string
		contentType string
	}{
		{"/api/v1/documents/export/json", "application/json"},
		{"/api/v1/documents/export/csv", "text/csv"},
		{"/api/v1/documents/export/xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}
	for _, c := range cases {
		w := f.do(t, http.MethodGet, c.target, "1", nil, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", c.target, w.Code)
			continue
		}
		if got := w.Header().Get("Content-Type"); got != c.contentType {
			t.Errorf("%s: content type = %q", c.target, got)
		}
		if w.Header().Get("Content-Disposition") == "" {
			t.Errorf("%s: missing Content-Disposition", c.target)
		}
		if w.Body.Len() == 0 {
			t.Errorf("%s: empty body", c.target)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newServerFixture(t, 4)

	body, ct := multipartBody(t, "doc.txt", "content")
	if w := f.do(t, http.MethodPost, "/api/v1/documents", "1", body, ct); w.Code != http.StatusCreated {
		t.Fatal("upload failed")
	}

	w := f.do(t, http.MethodGet, "/api/v1/status", "1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Documents map[string]int  `json:"documents"`
		Backends  map[string]bool `json:"backends"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Documents["pending"] != 1 {
		t.Errorf("pending = %d, want 1", out.Documents["pending"])
	}
	if _, ok := out.Documents["processing"]; !ok {
		t.Error("processing count missing from status")
	}
	if _, ok := out.Backends["ocr"]; !ok {
		t.Error("backend availability missing from status")
	}
}
