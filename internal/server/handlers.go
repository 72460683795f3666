package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/models"
	"github.com/docsift/docsift/internal/queue"
	"github.com/docsift/docsift/internal/store"
)

// maxUploadBytes bounds the in-memory part of a multipart upload.
const maxUploadBytes = 32 << 20

type ctxKey int

const (
	tenantKey ctxKey = iota
	userKey
)

// tenantMiddleware resolves the caller's identity from the X-Tenant-ID and
// X-User-ID headers. It is the single seam a real authenticator would
// replace; every handler below it reads the identity from the request
// context only. X-User-ID is optional; when present it must be positive.
func (s *Server) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Tenant-ID")
		tenantID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || tenantID <= 0 {
			s.respondError(w, http.StatusBadRequest, "missing or invalid X-Tenant-ID header")
			return
		}
		var userID int64
		if raw := r.Header.Get("X-User-ID"); raw != "" {
			userID, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				s.respondError(w, http.StatusBadRequest, "invalid X-User-ID header")
				return
			}
		}
		ctx := context.WithValue(r.Context(), tenantKey, tenantID)
		ctx = context.WithValue(ctx, userKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(tenantKey).(int64)
	return id
}

func userFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(userKey).(int64)
	return id
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		s.respondError(w, http.StatusBadRequest, "filename is required")
		return
	}

	ref, size, err := s.blobs.Save(tenantID, header.Filename, file)
	if err != nil {
		s.logger.Error("upload save failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	doc, err := s.store.Create(r.Context(), store.CreateInput{
		TenantID: tenantID,
		UserID:   userFrom(r),
		Filename: header.Filename,
		FileRef:  ref,
		FileSize: size,
		MimeType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		s.logger.Error("upload create failed", zap.Error(err))
		_ = s.blobs.Remove(ref)
		s.respondError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	if _, err := s.broker.Enqueue(r.Context(), queue.Job{
		DocumentID: doc.ID,
		TenantID:   tenantID,
		Timeout:    s.jobTimeout,
	}); err != nil {
		s.logger.Error("upload enqueue failed", zap.Int64("document_id", doc.ID), zap.Error(err))
		failed, terr := s.store.Transition(r.Context(), doc.ID, tenantID, models.StatusFailed, nil, "failed to queue document for processing")
		if terr == nil {
			doc = failed
		}
		s.respondError(w, http.StatusInternalServerError, "failed to queue document for processing")
		return
	}

	s.logger.Debug("document uploaded",
		zap.Int64("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int64("size", size))
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	q := r.URL.Query()

	var statusFilter models.Status
	if raw := q.Get("status"); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		statusFilter = parsed
	}
	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}
	pageSize := 20
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			s.respondError(w, http.StatusBadRequest, "page_size must be between 1 and 100")
			return
		}
		pageSize = n
	}

	result, err := s.store.List(r.Context(), tenantID, statusFilter, page, pageSize)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.store.Get(r.Context(), id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("get document failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.store.Get(r.Context(), id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	path, err := s.blobs.Path(doc.FileRef)
	if err != nil {
		s.logger.Error("download resolve failed", zap.Int64("document_id", id), zap.Error(err))
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	mime := doc.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			s.respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	hits, err := s.searchIdx.Search(tenantID, query, limit)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type searchHit struct {
		Document *models.Document `json:"document"`
		Score    float64          `json:"score"`
	}
	results := make([]searchHit, 0, len(hits))
	for _, hit := range hits {
		doc, err := s.store.Get(r.Context(), hit.DocumentID, tenantID)
		if err != nil {
			// Index entry without a matching document record, skip it.
			continue
		}
		results = append(results, searchHit{Document: doc, Score: hit.Score})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "documents_export.json", "application/json", s.exporter.JSON)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "documents_export.csv", "text/csv", s.exporter.CSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "documents_export.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", s.exporter.XLSX)
}

// export renders into a buffer first so a mid-render failure still
// produces a clean error response instead of a truncated download.
func (s *Server) export(w http.ResponseWriter, r *http.Request, filename, contentType string, render func(context.Context, int64, io.Writer) error) {
	tenantID := tenantFrom(r)
	var buf bytes.Buffer
	if err := render(r.Context(), tenantID, &buf); err != nil {
		s.logger.Error("export failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename=`+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	counts, err := s.store.CountByStatus(r.Context(), tenantID)
	if err != nil {
		s.logger.Error("status: count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	documents := map[string]int{}
	for _, st := range []models.Status{models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed} {
		documents[string(st)] = counts[st]
	}
	resp := map[string]interface{}{
		"documents": documents,
		"backends":  s.extractor.Backends(),
	}
	if s.searchIdx != nil {
		if count, err := s.searchIdx.DocCount(); err == nil {
			resp["indexed_documents"] = count
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
