package pipeline

import (
	"strings"

	"github.com/docsift/docsift/internal/models"
)

// documentType classifies by filename substrings first, then content
// keywords, in the same priority order. Defaults to "document".
func documentType(text, filename string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "invoice"):
		return "invoice"
	case strings.Contains(name, "receipt"):
		return "receipt"
	case strings.Contains(name, "contract"), strings.Contains(name, "agreement"):
		return "contract"
	case strings.Contains(name, "report"):
		return "report"
	case strings.Contains(name, "letter"):
		return "letter"
	}

	content := strings.ToLower(text)
	if containsAny(content, "invoice", "bill to", "amount due", "total", "subtotal") {
		return "invoice"
	}
	if containsAny(content, "receipt", "payment received", "thank you for your purchase") {
		return "receipt"
	}
	if containsAny(content, "agreement", "contract", "terms and conditions", "party") {
		return "contract"
	}
	return "document"
}

// contentCategories tags the document with coarse topical categories based
// on content keywords. Order is stable for deterministic output.
func contentCategories(text string, _ *models.Entities) []string {
	content := strings.ToLower(text)
	categories := []string{}
	if containsAny(content, "invoice", "payment", "bill", "amount due", "total", "subtotal") {
		categories = append(categories, "financial")
	}
	if containsAny(content, "api", "database", "server", "code", "programming", "software", "architecture") {
		categories = append(categories, "technical")
	}
	if containsAny(content, "contract", "agreement", "terms", "legal", "party", "obligation") {
		categories = append(categories, "legal")
	}
	if containsAny(content, "business", "company", "organization", "strategy", "market") {
		categories = append(categories, "business")
	}
	if containsAny(content, "research", "study", "analysis", "paper", "thesis", "university") {
		categories = append(categories, "academic")
	}
	return categories
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
