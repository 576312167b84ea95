// Package export renders a finished analysis in the formats analysts take
// away from a triage session.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/ioc"
)

// Format names an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatEML      Format = "eml"
	FormatIOCs     Format = "iocs"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatJSON, FormatEML, FormatIOCs:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q (valid: markdown, json, eml, iocs)", s)
}

// Render encodes a in format f.
func Render(a *analysis.Analysis, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(Markdown(a)), nil
	case FormatJSON:
		return JSON(a)
	case FormatEML:
		return []byte(SanitizedEML(a)), nil
	case FormatIOCs:
		return []byte(IOCList(a.IOCs)), nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

// JSON is the analysis serialized verbatim with two-space indentation.
func JSON(a *analysis.Analysis) ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}
	return data, nil
}

// SanitizedEML returns the raw message with every recorded redaction applied
// in order as a literal substitution.
func SanitizedEML(a *analysis.Analysis) string {
	sanitized := a.Email.RawContent
	for _, r := range a.Redaction.Redactions {
		if r.Original == "" {
			continue
		}
		sanitized = strings.ReplaceAll(sanitized, r.Original, r.Redacted)
	}
	return sanitized
}

// IOCList formats the indicator set as a plain list suitable for pasting
// into a ticket or blocklist request.
func IOCList(set ioc.Set) string {
	var b strings.Builder

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("## " + title + "\n")
		for _, item := range items {
			b.WriteString(item + "\n")
		}
		b.WriteString("\n")
	}

	section("Domains", set.Domains)
	section("URLs", set.URLs)
	section("IP Addresses", set.IPAddresses)
	section("Email Addresses", set.EmailAddresses)

	hashes := make([]string, 0, len(set.FileHashes))
	for _, h := range set.FileHashes {
		hashes = append(hashes, fmt.Sprintf("%s: SHA256: %s", h.Filename, h.SHA256))
	}
	section("File Hashes", hashes)

	headers := make([]string, 0, len(set.HeadersOfInterest))
	for _, h := range set.HeadersOfInterest {
		headers = append(headers, fmt.Sprintf("%s: %s", h.Name, h.Value))
	}
	section("Headers of Interest", headers)

	return strings.TrimRight(b.String(), "\n") + "\n"
}
