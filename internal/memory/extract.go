package memory

import (
	"regexp"
	"strings"

	"support-agent/internal/domain"
)

// Fixed identifier patterns. Order and payment ids are short alphanumeric
// codes behind a letter tag (ORD-12345, PAY_98765); addresses follow the
// US "number street, city, ST zip" shape.
var (
	orderPattern   = regexp.MustCompile(`(?i)\bORD[-_]?\d{3,}\b`)
	paymentPattern = regexp.MustCompile(`(?i)\bPAY[-_]?\d{3,}\b`)
	emailPattern   = regexp.MustCompile(`(?i)[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	datePattern    = regexp.MustCompile(`\b(?:20\d{2}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}[/-]\d{1,2}[/-]20\d{2})\b`)
	addressPattern = regexp.MustCompile(`(?i)\b\d{1,6}\s+[A-Za-z0-9 .'-]+,\s*[A-Za-z .'-]+,\s*[A-Za-z]{2}\s+\d{5}(?:-\d{4})?\b`)

	tokenPattern = regexp.MustCompile(`[a-z0-9]+`)
)

// Extract pulls every recognized entity out of text. Duplicates within one
// text are kept; deduplication happens when aggregating across messages.
func Extract(text string) domain.Entities {
	return domain.Entities{
		Orders:    orderPattern.FindAllString(text, -1),
		Payments:  paymentPattern.FindAllString(text, -1),
		Emails:    emailPattern.FindAllString(text, -1),
		Dates:     datePattern.FindAllString(text, -1),
		Addresses: addressPattern.FindAllString(text, -1),
	}
}

// Tokenize lowercases text and reduces it to its [a-z0-9]+ runs.
func Tokenize(text string) map[string]struct{} {
	toks := map[string]struct{}{}
	for _, t := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		toks[t] = struct{}{}
	}
	return toks
}
