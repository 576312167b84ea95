package export

import (
	"fmt"
	"strings"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/threat"
)

var levelMarker = map[threat.Level]string{
	threat.LevelHigh:   "🔴",
	threat.LevelMedium: "🟡",
	threat.LevelLow:    "🟢",
}

var severityMarker = map[threat.Severity]string{
	threat.SeverityHigh:   "🔴",
	threat.SeverityMedium: "🟡",
	threat.SeverityLow:    "🟢",
}

// Markdown renders the analyst report.
func Markdown(a *analysis.Analysis) string {
	e := a.Email
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Analysis\n\n", e.Subject)
	fmt.Fprintf(&b, "**Analysis Date:** %s\n", a.AnalyzedAt)
	fmt.Fprintf(&b, "**Threat Level:** %s %s (score %d)\n\n", levelMarker[a.Threat.Level], a.Threat.Level, a.Threat.Score)

	b.WriteString("## Summary\n\n")
	b.WriteString(a.Threat.Summary + "\n\n")

	b.WriteString("## Email Details\n\n")
	b.WriteString("| Field | Value |\n|-------|-------|\n")
	fmt.Fprintf(&b, "| From | %s |\n", cell(e.From))
	fmt.Fprintf(&b, "| To | %s |\n", cell(e.To))
	fmt.Fprintf(&b, "| Subject | %s |\n", cell(e.Subject))
	fmt.Fprintf(&b, "| Date | %s |\n", cell(orDefault(e.Date, "Unknown")))
	fmt.Fprintf(&b, "| Reply-To | %s |\n", cell(orDefault(e.ReplyTo, "Not specified")))
	fmt.Fprintf(&b, "| Return-Path | %s |\n\n", cell(orDefault(e.ReturnPath, "Not specified")))

	b.WriteString("## Authentication Results\n\n")
	b.WriteString("| Check | Status |\n|-------|--------|\n")
	fmt.Fprintf(&b, "| SPF | %s |\n", strings.ToUpper(string(e.Authentication.SPFStatus)))
	fmt.Fprintf(&b, "| DKIM | %s |\n", strings.ToUpper(string(e.Authentication.DKIMStatus)))
	fmt.Fprintf(&b, "| DMARC | %s |\n\n", strings.ToUpper(string(e.Authentication.DMARCStatus)))

	if len(a.Threat.Indicators) > 0 {
		b.WriteString("## Threat Indicators\n\n")
		for _, ind := range a.Threat.Indicators {
			fmt.Fprintf(&b, "- %s **%s**: %s\n", severityMarker[ind.Severity], ind.Category, ind.Description)
			if ind.Details != "" {
				fmt.Fprintf(&b, "  - %s\n", ind.Details)
			}
		}
		b.WriteString("\n")
	}

	if len(e.Attachments) > 0 {
		b.WriteString("## Attachments\n\n")
		for _, att := range e.Attachments {
			fmt.Fprintf(&b, "- %s (%s, %s)\n", att.Filename, att.ContentType, formatSize(att.Size))
			if att.PreviewError != "" {
				fmt.Fprintf(&b, "  - %s\n", att.PreviewError)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Indicators of Compromise\n\n")
	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("### " + title + "\n")
		for _, item := range items {
			b.WriteString("- " + item + "\n")
		}
		b.WriteString("\n")
	}
	list("Domains", a.IOCs.Domains)
	list("URLs", a.IOCs.URLs)
	list("IP Addresses", a.IOCs.IPAddresses)
	list("Email Addresses", a.IOCs.EmailAddresses)

	hashes := make([]string, 0, len(a.IOCs.FileHashes))
	for _, h := range a.IOCs.FileHashes {
		hashes = append(hashes, fmt.Sprintf("%s: SHA256: %s", h.Filename, h.SHA256))
	}
	list("File Hashes", hashes)

	headers := make([]string, 0, len(a.IOCs.HeadersOfInterest))
	for _, h := range a.IOCs.HeadersOfInterest {
		headers = append(headers, fmt.Sprintf("%s: %s", h.Name, h.Value))
	}
	list("Headers of Interest", headers)

	b.WriteString("## Email Body (Redacted)\n\n")
	b.WriteString("```\n")
	b.WriteString(a.Redaction.RedactedText)
	b.WriteString("\n```\n")

	return b.String()
}

func orDefault(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

// cell escapes pipes so a value cannot break the table row.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
