package extract

import (
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// extractExcel flattens every sheet to tab-separated rows. Each sheet counts
// as a page. Failures degrade to an empty Result.
func (e *Extractor) extractExcel(path string) Result {
	f, err := excelize.OpenFile(path)
	if err != nil {
		e.logger.Warn("excel open failed", zap.String("path", path), zap.Error(err))
		return Result{}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var buf strings.Builder
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			e.logger.Warn("excel sheet read failed", zap.String("sheet", sheet), zap.Error(err))
			continue
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return Result{}
	}
	return Result{Text: text, Pages: len(sheets)}
}
