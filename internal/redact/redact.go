// Package redact replaces personal data in message text with placeholder
// tokens while recording every substitution, so a sanitized copy of the raw
// source can be produced from the same records.
package redact

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redaction types recorded on each substitution.
const (
	TypeEmail      = "email"
	TypePhone      = "phone"
	TypeCreditCard = "credit_card"
	TypeSSN        = "ssn"
	TypeName       = "name"
	TypeCustom     = "custom"
)

// Placeholder tokens.
const (
	PlaceholderEmailLocal = "[REDACTED]"
	PlaceholderEmail      = "[REDACTED-EMAIL]"
	PlaceholderPhone      = "[REDACTED-PHONE]"
	PlaceholderCreditCard = "[REDACTED-CC]"
	PlaceholderSSN        = "[REDACTED-SSN]"
	PlaceholderName       = "[REDACTED-NAME]"
	PlaceholderCustom     = "[REDACTED-CUSTOM]"
)

// Options selects the categories to redact.
type Options struct {
	Emails         bool     `json:"redact_emails" yaml:"emails"`
	Phones         bool     `json:"redact_phones" yaml:"phones"`
	CreditCards    bool     `json:"redact_credit_cards" yaml:"credit_cards"`
	SSN            bool     `json:"redact_ssn" yaml:"ssn"`
	Names          bool     `json:"redact_names" yaml:"names"`
	CustomPatterns []string `json:"custom_patterns" yaml:"custom_patterns"`
}

// DefaultOptions enables every built-in category with no custom patterns.
func DefaultOptions() Options {
	return Options{
		Emails:      true,
		Phones:      true,
		CreditCards: true,
		SSN:         true,
		Names:       true,
	}
}

// Redaction records one substitution. For names Original is the name only.
type Redaction struct {
	Original      string `json:"original"`
	Redacted      string `json:"redacted"`
	RedactionType string `json:"redaction_type"`
}

// Result is the redacted text and the substitutions that produced it.
type Result struct {
	RedactedText   string      `json:"redacted_text"`
	RedactionCount int         `json:"redaction_count"`
	Redactions     []Redaction `json:"redactions"`
}

var (
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern      = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
	creditCardPattern = regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`)
	ssnPattern        = regexp.MustCompile(`\b[0-9]{3}[-\s]?[0-9]{2}[-\s]?[0-9]{4}\b`)
	namePattern       = regexp.MustCompile(`(?i)\b(?:dear|hello|hi|hey)\s+([a-z]+(?:\s+[a-z]+)?)`)
)

// Redact applies the enabled categories in a fixed order: emails, phones,
// credit cards, SSNs, names, then custom patterns. Each category scans the
// output of the previous one.
func Redact(text string, opts Options) Result {
	r := &redactor{text: text, redactions: []Redaction{}}

	if opts.Emails {
		r.apply(emailPattern, TypeEmail, 0, emailPlaceholder)
	}
	if opts.Phones {
		r.apply(phonePattern, TypePhone, 0, fixed(PlaceholderPhone))
	}
	if opts.CreditCards {
		r.apply(creditCardPattern, TypeCreditCard, 0, fixed(PlaceholderCreditCard))
	}
	if opts.SSN {
		r.apply(ssnPattern, TypeSSN, 0, fixed(PlaceholderSSN))
	}
	if opts.Names {
		r.apply(namePattern, TypeName, 1, fixed(PlaceholderName))
	}
	for _, p := range opts.CustomPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			slog.Warn("skipping invalid custom redaction pattern",
				"pattern", p,
				"error", err,
			)
			continue
		}
		r.apply(re, TypeCustom, 0, fixed(PlaceholderCustom))
	}

	return Result{
		RedactedText:   r.text,
		RedactionCount: len(r.redactions),
		Redactions:     r.redactions,
	}
}

type redactor struct {
	text       string
	redactions []Redaction
}

// apply replaces submatch group of every match of re in the current text.
// Group 0 is the whole match.
func (r *redactor) apply(re *regexp.Regexp, kind string, group int, placeholder func(string) string) {
	matches := re.FindAllStringSubmatchIndex(r.text, -1)
	if len(matches) == 0 {
		return
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2*group], m[2*group+1]
		if start < 0 || start == end {
			continue
		}
		// an address running straight into another "@" is ambiguous; leave it
		if kind == TypeEmail && end < len(r.text) && r.text[end] == '@' {
			continue
		}
		original := r.text[start:end]
		redacted := placeholder(original)
		b.WriteString(r.text[last:start])
		b.WriteString(redacted)
		last = end
		r.redactions = append(r.redactions, Redaction{
			Original:      original,
			Redacted:      redacted,
			RedactionType: kind,
		})
	}
	b.WriteString(r.text[last:])
	r.text = b.String()
}

func emailPlaceholder(match string) string {
	parts := strings.Split(match, "@")
	if len(parts) != 2 {
		return PlaceholderEmail
	}
	return PlaceholderEmailLocal + "@" + parts[1]
}

func fixed(token string) func(string) string {
	return func(string) string { return token }
}
