package threat

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/shineum/phishtriage/internal/email"
)

// Rule weights.
const (
	WeightSPFFail            = 25
	WeightSPFSoftFail        = 10
	WeightDKIMFail           = 25
	WeightDMARCFail          = 25
	WeightReturnPathMismatch = 15
	WeightReplyToMismatch    = 15
	WeightUrgency            = 10
	WeightCredential         = 20
	WeightImpersonation      = 15
	WeightShortener          = 10
	WeightExternalLink       = 5
	WeightDangerousFile      = 30
	WeightArchiveFile        = 10
)

// Indicator categories.
const (
	CategoryAuthentication       = "Authentication"
	CategoryHeaderAnomaly        = "Header Anomaly"
	CategorySocialEngineering    = "Social Engineering"
	CategoryCredentialHarvesting = "Credential Harvesting"
	CategoryImpersonation        = "Impersonation"
	CategorySuspiciousURL        = "Suspicious URL"
	CategoryMaliciousAttachment  = "Malicious Attachment"
	CategorySuspiciousAttachment = "Suspicious Attachment"
)

// DefaultRules builds the standard scoring table over cfg.
func DefaultRules(cfg *Config) []Rule {
	return []Rule{
		{
			Name:        "spf_fail",
			Category:    CategoryAuthentication,
			Description: "SPF check failed",
			Severity:    SeverityHigh,
			Weight:      WeightSPFFail,
			Match: authStatus(func(a email.AuthenticationResult) bool { return a.SPFStatus == email.AuthFail },
				"The sender's domain did not authorize this server to send emails on its behalf."),
		},
		{
			Name:        "spf_softfail",
			Category:    CategoryAuthentication,
			Description: "SPF soft fail",
			Severity:    SeverityMedium,
			Weight:      WeightSPFSoftFail,
			Match: authStatus(func(a email.AuthenticationResult) bool { return a.SPFStatus == email.AuthSoftFail },
				"The sender's SPF policy indicates this server may not be authorized."),
		},
		{
			Name:        "dkim_fail",
			Category:    CategoryAuthentication,
			Description: "DKIM verification failed",
			Severity:    SeverityHigh,
			Weight:      WeightDKIMFail,
			Match: authStatus(func(a email.AuthenticationResult) bool { return a.DKIMStatus == email.AuthFail },
				"The email's DKIM signature could not be verified."),
		},
		{
			Name:        "dmarc_fail",
			Category:    CategoryAuthentication,
			Description: "DMARC check failed",
			Severity:    SeverityHigh,
			Weight:      WeightDMARCFail,
			Match: authStatus(func(a email.AuthenticationResult) bool { return a.DMARCStatus == email.AuthFail },
				"The email failed DMARC policy validation."),
		},
		{
			Name:        "return_path_mismatch",
			Category:    CategoryHeaderAnomaly,
			Description: "Return-Path mismatch",
			Severity:    SeverityMedium,
			Weight:      WeightReturnPathMismatch,
			Match:       matchReturnPath,
		},
		{
			Name:        "reply_to_mismatch",
			Category:    CategoryHeaderAnomaly,
			Description: "Reply-To mismatch",
			Severity:    SeverityMedium,
			Weight:      WeightReplyToMismatch,
			Match:       matchReplyTo,
		},
		{
			Name:        "urgency_language",
			Category:    CategorySocialEngineering,
			Description: "Urgency language detected",
			Severity:    SeverityMedium,
			Weight:      WeightUrgency,
			Once:        true,
			Match: phrase(cfg.UrgencyPatterns,
				"The email uses urgent or pressure tactics common in phishing."),
		},
		{
			Name:        "credential_request",
			Category:    CategoryCredentialHarvesting,
			Description: "Credential request detected",
			Severity:    SeverityHigh,
			Weight:      WeightCredential,
			Once:        true,
			Match: phrase(cfg.CredentialPatterns,
				"The email contains language requesting login or personal information."),
		},
		{
			Name:     "impersonation",
			Category: CategoryImpersonation,
			Severity: SeverityHigh,
			Weight:   WeightImpersonation,
			Once:     true,
			Match:    impersonation(cfg.ImpersonationPatterns),
		},
		{
			Name:        "url_shortener",
			Category:    CategorySuspiciousURL,
			Description: "URL shortener detected",
			Severity:    SeverityMedium,
			Weight:      WeightShortener,
			Match:       shorteners(cfg.Shorteners),
		},
		{
			Name:        "external_link",
			Category:    CategorySuspiciousURL,
			Description: "External domain in links",
			Severity:    SeverityLow,
			Weight:      WeightExternalLink,
			Once:        true,
			Match:       externalLink,
		},
		{
			Name:     "dangerous_attachment",
			Category: CategoryMaliciousAttachment,
			Severity: SeverityHigh,
			Weight:   WeightDangerousFile,
			Match: attachmentExt(cfg.DangerousExtensions, "Dangerous file type: .%s",
				"Attachment '%s' is an executable file type"),
		},
		{
			Name:     "archive_attachment",
			Category: CategorySuspiciousAttachment,
			Severity: SeverityMedium,
			Weight:   WeightArchiveFile,
			Match: attachmentExt(cfg.ArchiveExtensions, "Archive file type: .%s",
				"Attachment '%s' is an archive that may contain malware"),
		},
	}
}

func authStatus(failed func(email.AuthenticationResult) bool, details string) func(*email.Email) []Hit {
	return func(e *email.Email) []Hit {
		if !failed(e.Authentication) {
			return nil
		}
		return []Hit{{Details: details}}
	}
}

func matchReturnPath(e *email.Email) []Hit {
	if !e.ReturnPathMismatch() {
		return nil
	}
	return []Hit{{Details: fmt.Sprintf("From: %s differs from Return-Path: %s", e.From, *e.ReturnPath)}}
}

func matchReplyTo(e *email.Email) []Hit {
	if !e.ReplyToMismatch() {
		return nil
	}
	return []Hit{{Details: fmt.Sprintf("Replies would go to %s instead of %s", *e.ReplyTo, e.From)}}
}

// phraseText is the text the phrase rules scan.
func phraseText(e *email.Email) string {
	return e.Subject + " " + e.BodyText + " " + e.BodyHTML
}

// phrase reports a hit on the first pattern that matches.
func phrase(patterns []*regexp.Regexp, details string) func(*email.Email) []Hit {
	return func(e *email.Email) []Hit {
		text := phraseText(e)
		for _, p := range patterns {
			if p.MatchString(text) {
				return []Hit{{Details: details}}
			}
		}
		return nil
	}
}

// impersonation reports the first brand or support phrase that the sender
// domain does not contain. Spaces in the phrase are ignored for the
// comparison so "bank of" matches bankofexample.com.
func impersonation(patterns []*regexp.Regexp) func(*email.Email) []Hit {
	return func(e *email.Email) []Hit {
		text := phraseText(e)
		domain := e.SenderDomain()
		for _, p := range patterns {
			m := p.FindString(text)
			if m == "" {
				continue
			}
			brand := strings.ToLower(m)
			if domain != "" && strings.Contains(domain, strings.ReplaceAll(brand, " ", "")) {
				continue
			}
			return []Hit{{
				Description: fmt.Sprintf("Possible %s impersonation", brand),
				Details:     fmt.Sprintf("Email mentions %s but sender domain doesn't match.", brand),
			}}
		}
		return nil
	}
}

// shorteners reports one hit per URL whose host is a shortener domain or a
// subdomain of one.
func shorteners(domains []string) func(*email.Email) []Hit {
	return func(e *email.Email) []Hit {
		var hits []Hit
		for _, raw := range e.URLs {
			host := hostOf(raw)
			if host == "" {
				continue
			}
			for _, s := range domains {
				if host == s || strings.HasSuffix(host, "."+s) {
					hits = append(hits, Hit{
						Details: fmt.Sprintf("URL shortener used: %s (may hide malicious destination)", s),
					})
					break
				}
			}
		}
		return hits
	}
}

// externalLink reports every parseable URL whose host does not overlap the
// sender domain; the rule counts only the first.
func externalLink(e *email.Email) []Hit {
	domain := e.SenderDomain()
	if domain == "" {
		return nil
	}
	var hits []Hit
	for _, raw := range e.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if strings.Contains(host, domain) || strings.Contains(domain, host) {
			continue
		}
		hits = append(hits, Hit{
			Details: fmt.Sprintf("Link points to %s which differs from sender domain", u.Hostname()),
		})
	}
	return hits
}

func attachmentExt(exts []string, descFormat, detailsFormat string) func(*email.Email) []Hit {
	return func(e *email.Email) []Hit {
		var hits []Hit
		for _, a := range e.Attachments {
			ext := strings.ToLower(strings.TrimPrefix(path.Ext(a.Filename), "."))
			if ext == "" || !slices.Contains(exts, ext) {
				continue
			}
			hits = append(hits, Hit{
				Description: fmt.Sprintf(descFormat, ext),
				Details:     fmt.Sprintf(detailsFormat, a.Filename),
			})
		}
		return hits
	}
}

// hostOf returns the lower-cased host of a URL, falling back to the text
// between the scheme and the first path, query or port delimiter when the
// URL does not parse.
func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#:"); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}
