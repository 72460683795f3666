// Package pipeline orchestrates format extraction, language detection,
// classification, entity extraction, and summary statistics into one
// immutable metadata record per document.
package pipeline

import (
	"math"
	"strings"
	"time"

	"github.com/docsift/docsift/internal/entities"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/lang"
	"github.com/docsift/docsift/internal/models"
	"github.com/docsift/docsift/pkg/utils"
	"go.uber.org/zap"
)

const (
	previewLimit     = 200
	summaryLimit     = 300
	summarySentences = 3
)

// Processor runs the metadata pipeline. Pure with respect to its inputs
// other than reading the file.
type Processor struct {
	extractor *extract.Extractor
	entities  *entities.Extractor
	logger    *zap.Logger
}

// New returns a Processor over the given extractors. logger may be nil.
func New(extractor *extract.Extractor, ents *entities.Extractor, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{extractor: extractor, entities: ents, logger: logger}
}

// Process extracts all metadata for the file at path. The original filename
// drives format dispatch and type classification. It also returns the full
// extracted text for downstream indexing. Process never fails: any byte
// content, including empty or binary garbage, yields a metadata record with
// zeroed counts in the worst case.
func (p *Processor) Process(path, filename string) (*models.ExtractedMetadata, string) {
	start := time.Now()

	res := p.extractor.Extract(path, filename)
	text := res.Text

	wordCount := utils.WordCount(text)
	language := lang.Detect(text)
	docType := documentType(text, filename)
	ents := p.entities.Extract(text)

	preview := utils.Truncate(strings.TrimSpace(text), previewLimit)

	sentences := utils.Sentences(text)
	sentenceCount := len(sentences)
	avgWords := 0.0
	if sentenceCount > 0 {
		avgWords = math.Round(float64(wordCount)/float64(sentenceCount)*100) / 100
	}

	summary := preview
	if sentenceCount >= summarySentences {
		summary = strings.Join(sentences[:summarySentences], ". ") + "."
	}
	summary = utils.Cut(summary, summaryLimit)

	md := &models.ExtractedMetadata{
		PageCount:           res.Pages,
		WordCount:           wordCount,
		SentenceCount:       sentenceCount,
		AvgWordsPerSentence: avgWords,
		Language:            language,
		DocumentType:        docType,
		TextPreview:         preview,
		Summary:             summary,
		Entities:            ents,
		ProcessingSeconds:   math.Round(time.Since(start).Seconds()*100) / 100,
		TextLength:          len(text),
		HasStructuredData:   len(ents.Dates) > 0 || len(ents.Amounts) > 0 || len(ents.Emails) > 0,
		ContentCategories:   contentCategories(text, &ents),
	}
	p.logger.Debug("pipeline finished",
		zap.String("filename", filename),
		zap.String("document_type", docType),
		zap.Int("word_count", wordCount),
		zap.Int("page_count", res.Pages))
	return md, text
}
