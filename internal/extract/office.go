package extract

import (
	"github.com/lu4p/cat"
	"go.uber.org/zap"
)

// extractOffice handles DOCX, ODT, and RTF through the cat reader. One page;
// these formats do not expose a page count without rendering.
func (e *Extractor) extractOffice(path string) Result {
	text, err := cat.File(path)
	if err != nil {
		e.logger.Warn("office extraction failed", zap.String("path", path), zap.Error(err))
		return Result{}
	}
	if text == "" {
		return Result{}
	}
	return Result{Text: text, Pages: 1}
}
