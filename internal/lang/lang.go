// Package lang provides best-effort language detection for extracted text.
package lang

import (
	"github.com/abadojack/whatlanggo"
	"github.com/docsift/docsift/pkg/utils"
)

// detection window: long documents are sampled from the front.
const sampleLimit = 1000

// fallback when text is empty or detection is unreliable.
const defaultLanguage = "en"

// Detect returns the ISO 639-1 code for the text's language. Detection is
// best-effort on a bounded prefix; empty text, unknown languages,
// and unreliable detections all fall back to "en". Detect never fails.
func Detect(text string) string {
	if text == "" {
		return defaultLanguage
	}
	text = utils.Cut(text, sampleLimit)
	info := whatlanggo.Detect(text)
	if info.Lang == -1 || !info.IsReliable() {
		return defaultLanguage
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return defaultLanguage
	}
	return code
}
