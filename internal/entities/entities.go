// Package entities extracts structured facts (dates, amounts, companies,
// emails, phone numbers, URLs, keywords) from raw text. Every class is
// produced by deterministic pattern matchers; organization detection can use
// an optional statistical recognizer, merged with the pattern fallback.
package entities

import (
	"sort"
	"strings"

	"github.com/docsift/docsift/internal/models"
	"go.uber.org/zap"
)

// Recognizer is the optional statistical named-entity backend. Availability
// is detected at runtime; extraction correctness never depends on it.
type Recognizer interface {
	Available() bool
	Organizations(text string) ([]string, error)
}

// ner input is capped so a huge document does not stall the recognizer.
const nerTextLimit = 15000

// minimum organizations the recognizer must yield before the pattern
// fallback is skipped; below it the two sources are merged.
const minRecognizedOrgs = 5

// Extractor runs all entity class matchers. Pure with respect to its input.
type Extractor struct {
	recognizer Recognizer
	logger     *zap.Logger
}

// New returns an Extractor. recognizer and logger may be nil.
func New(recognizer Recognizer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{recognizer: recognizer, logger: logger}
}

// Extract returns all entity classes for text. Each class is deduplicated,
// lexicographically sorted, and truncated to its cap. Empty text yields a
// record with every class empty.
func (e *Extractor) Extract(text string) models.Entities {
	if text == "" {
		return models.Entities{
			Dates:        []string{},
			Amounts:      []string{},
			Companies:    []string{},
			Emails:       []string{},
			PhoneNumbers: []string{},
			URLs:         []string{},
			Keywords:     []string{},
		}
	}
	return models.Entities{
		Dates:        normalize(matchAll(datePatterns, text), models.MaxDates),
		Amounts:      normalize(matchAll(amountPatterns, text), models.MaxAmounts),
		Companies:    e.extractCompanies(text),
		Emails:       normalize(emailPattern.FindAllString(text, -1), models.MaxEmails),
		PhoneNumbers: normalize(matchAll(phonePatterns, text), models.MaxPhones),
		URLs:         normalize(urlPattern.FindAllString(text, -1), models.MaxURLs),
		Keywords:     normalize(lowerAll(keywordPattern.FindAllString(text, -1)), models.MaxKeywords),
	}
}

// extractCompanies prefers the statistical recognizer, filtered against the
// acronym denylist. When it is absent, fails, or finds too few names, the
// deterministic pattern fallback supplements the result; the two sources are
// merged before normalization, not replaced.
func (e *Extractor) extractCompanies(text string) []string {
	var orgs []string
	if e.recognizer != nil && e.recognizer.Available() {
		window := text
		if len(window) > nerTextLimit {
			window = window[:nerTextLimit]
		}
		found, err := e.recognizer.Organizations(window)
		if err != nil {
			e.logger.Debug("organization recognizer failed, using pattern fallback", zap.Error(err))
		} else {
			for _, org := range found {
				org = strings.TrimSpace(org)
				if len(org) > 2 && !acronymDenylist[strings.ToUpper(org)] {
					orgs = append(orgs, org)
				}
			}
		}
	}

	if len(dedupe(orgs)) < minRecognizedOrgs {
		for _, c := range matchAll(companyPatterns, text) {
			// drop bare short acronyms the patterns occasionally catch
			if len(strings.Fields(c)) > 1 || len(c) > 4 {
				orgs = append(orgs, c)
			}
		}
	}
	return normalize(orgs, models.MaxCompanies)
}

func matchAll(patterns []*patternMatcher, text string) []string {
	var out []string
	for _, p := range patterns {
		out = append(out, p.re.FindAllString(text, -1)...)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// normalize deduplicates, sorts, and truncates to max. Always returns a
// non-nil slice so entity classes serialize as [] rather than null.
func normalize(in []string, max int) []string {
	out := dedupe(in)
	sort.Strings(out)
	if len(out) > max {
		out = out[:max]
	}
	if out == nil {
		out = []string{}
	}
	return out
}
