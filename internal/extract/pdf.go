package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// extractPDF tries the layout-aware reader first, then the basic one. On
// total failure it returns an empty Result; PDF extraction never errors out
// of this package.
func (e *Extractor) extractPDF(path string) Result {
	text, pages, err := pdfTextByRow(path)
	if err != nil {
		e.logger.Debug("layout-aware PDF extraction failed, trying basic",
			zap.String("path", path), zap.Error(err))
		text, pages, err = pdfPlainText(path)
	}
	if err != nil {
		e.logger.Warn("PDF extraction failed", zap.String("path", path), zap.Error(err))
		return Result{}
	}
	if pages == 0 {
		// The text walkers report pages they visited; ask pdfcpu for the
		// authoritative count when they came up empty.
		if n, cerr := pdfcpu.PageCountFile(path); cerr == nil {
			pages = n
		}
	}
	return Result{Text: text, Pages: pages}
}

// pdfTextByRow walks each page's rows, which keeps reading order for
// column/table layouts. The reader panics on some malformed files, so the
// panic is converted into an error for the fallback chain.
func pdfTextByRow(path string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", 0, fmt.Errorf("extract page %d: %w", i, err)
		}
		for _, row := range rows {
			for j, word := range row.Content {
				if j > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(word.S)
			}
			buf.WriteByte('\n')
		}
		if i < pages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), pages, nil
}

// pdfPlainText is the basic fallback: concatenated plain text per page.
func pdfPlainText(path string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(pageText)
		if i < pages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), pages, nil
}
