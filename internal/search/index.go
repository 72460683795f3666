// Package search provides the Bleve full-text index over extracted
// document text. Every entry carries its tenant so queries never cross
// tenant boundaries.
package search

import (
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// indexEntry is the shape stored in Bleve for one processed document.
type indexEntry struct {
	Tenant   string `json:"tenant"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Result is one search hit.
type Result struct {
	DocumentID int64   `json:"document_id"`
	Score      float64 `json:"score"`
}

// Index is a tenant-scoped full-text index backed by Bleve.
type Index struct {
	index bleve.Index
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// reused so restarts keep previously indexed documents; remove the
// directory to force a rebuild after a mapping change.
func NewIndex(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a query for
	// the exact word in a document always matches it.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("filename", textFieldMapping)
	tenantFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("tenant", tenantFieldMapping)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// Index adds or replaces the entry for a document.
func (x *Index) Index(docID, tenantID int64, filename, text string) error {
	entry := indexEntry{
		Tenant:   strconv.FormatInt(tenantID, 10),
		Filename: filename,
		Content:  text,
	}
	return x.index.Index(strconv.FormatInt(docID, 10), entry)
}

// Delete removes a document from the index.
func (x *Index) Delete(docID int64) error {
	return x.index.Delete(strconv.FormatInt(docID, 10))
}

// Search runs a match query over filename and content, restricted to one
// tenant, and returns up to limit results ordered by score.
func (x *Index) Search(tenantID int64, query string, limit int) ([]*Result, error) {
	tq := bleve.NewTermQuery(strconv.FormatInt(tenantID, 10))
	tq.SetField("tenant")
	mq := bleve.NewMatchQuery(query)
	q := bleve.NewConjunctionQuery(tq, mq)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, &Result{DocumentID: id, Score: hit.Score})
	}
	return out, nil
}

// DocCount returns the total number of indexed documents across tenants.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the Bleve index.
func (x *Index) Close() error {
	return x.index.Close()
}
