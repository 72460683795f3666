package entities

import "regexp"

type patternMatcher struct {
	name string
	re   *regexp.Regexp
}

func pat(name, expr string) *patternMatcher {
	return &patternMatcher{name: name, re: regexp.MustCompile(expr)}
}

var datePatterns = []*patternMatcher{
	pat("iso", `\b\d{4}-\d{2}-\d{2}\b`),
	pat("slash", `\b\d{1,2}/\d{1,2}/\d{4}\b`),
	pat("dash", `\b\d{1,2}-\d{1,2}-\d{4}\b`),
	pat("month-first", `(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`),
	pat("day-first", `(?i)\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4}\b`),
}

var amountPatterns = []*patternMatcher{
	pat("dollar", `\$[\d,]+\.?\d{0,2}`),
	pat("usd-prefix", `(?i)USD\s*[\d,]+\.?\d{0,2}`),
	pat("currency-suffix", `(?i)[\d,]+\.?\d{0,2}\s*(?:dollars|USD|EUR|GBP)`),
	pat("euro", `€[\d,]+\.?\d{0,2}`),
	pat("pound", `£[\d,]+\.?\d{0,2}`),
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

var phonePatterns = []*patternMatcher{
	pat("us", `\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
	pat("us-paren", `\(\d{3}\)\s?\d{3}[-.]?\d{4}`),
	pat("intl", `\+\d{1,3}[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}\b`),
}

var urlPattern = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")

var companyPatterns = []*patternMatcher{
	pat("legal-suffix", `\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3}\s+(?:Inc|Corp|LLC|Ltd|Limited|Company|Co|Corporation|Technologies|Systems|Solutions|Group|Industries)\.?\b`),
	pat("well-known", `(?i)\b(?:Amazon|Google|Microsoft|Apple|Facebook|Meta|Twitter|LinkedIn|Netflix|Uber|Airbnb|Salesforce|Oracle|IBM|Intel|NVIDIA|Adobe|PayPal|Stripe|Shopify)\b`),
}

var keywordPattern = regexp.MustCompile(`(?i)\b(?:cloud|database|server|client|API|REST|GraphQL|microservices|container|docker|kubernetes|scalability|performance|security|authentication|authorization|encryption|blockchain|AI|machine learning|data science|analytics|business intelligence)\b`)

// acronymDenylist filters recognizer output: common technical acronyms that
// statistical models keep tagging as organizations.
var acronymDenylist = map[string]bool{
	"FE": true, "DNS": true, "CAP": true, "FS": true, "SQL": true,
	"API": true, "URL": true, "HTTP": true, "HTTPS": true, "PDF": true,
	"XML": true, "JSON": true, "HTML": true, "CSS": true, "JS": true,
	"AWS": true, "RDS": true, "RDBMS": true,
}
