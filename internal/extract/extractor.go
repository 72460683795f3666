// Package extract produces plain text and a page count from document files.
// Dispatch is by filename extension; every format has an ordered fallback
// chain and a missing backend degrades to empty output, never an error.
package extract

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Result is the outcome of one extraction. Zero value means "no text could
// be extracted", which is a valid degraded result rather than a failure.
type Result struct {
	Text  string
	Pages int
}

// Config holds optional backend settings.
type Config struct {
	TesseractBinary string
	TesseractLang   string
}

// Extractor dispatches on file type. Construct with New.
type Extractor struct {
	ocr    *ocrRunner
	logger *zap.Logger
}

// New returns an Extractor. logger may be nil.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		ocr:    newOCRRunner(cfg.TesseractBinary, cfg.TesseractLang, logger),
		logger: logger,
	}
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tiff": true,
}

// Extract reads the file at path and returns its text and page count. The
// filename (not the stored path) decides the format; its extension is
// matched case-insensitively. Extract never fails: unreadable or unsupported
// content yields an empty Result.
func (e *Extractor) Extract(path, filename string) Result {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return e.extractPDF(path)
	case imageExts[ext]:
		text := e.ocr.Text(path)
		pages := 0
		if text != "" {
			pages = 1
		}
		return Result{Text: text, Pages: pages}
	case ext == ".docx" || ext == ".odt" || ext == ".rtf":
		return e.extractOffice(path)
	case ext == ".xlsx":
		return e.extractExcel(path)
	default:
		// .txt, .md, and anything unknown: best-effort lossy text read.
		return e.extractPlain(path)
	}
}

// Backends reports runtime availability of the optional extraction backends.
func (e *Extractor) Backends() map[string]bool {
	return map[string]bool{
		"ocr": e.ocr.Available(),
	}
}
