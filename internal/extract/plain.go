package extract

import (
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// extractPlain reads the file as UTF-8 text. Invalid sequences are replaced
// with the replacement character rather than rejected; an unreadable file
// degrades to an empty Result.
func (e *Extractor) extractPlain(path string) Result {
	content, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("plain text read failed", zap.String("path", path), zap.Error(err))
		return Result{}
	}
	if len(content) == 0 {
		return Result{}
	}
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return Result{Text: text, Pages: 1}
}
