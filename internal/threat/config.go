package threat

import (
	"regexp"
	"strings"
)

// Config is the immutable data the default rules match against. Build it
// once and share it between scorers.
type Config struct {
	UrgencyPatterns       []*regexp.Regexp
	CredentialPatterns    []*regexp.Regexp
	ImpersonationPatterns []*regexp.Regexp
	Shorteners            []string
	DangerousExtensions   []string
	ArchiveExtensions     []string
}

// DefaultConfig returns the built-in phrase patterns and lists.
func DefaultConfig() *Config {
	return &Config{
		UrgencyPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(urgent|immediately|asap|right away|act now|limited time)\b`),
			regexp.MustCompile(`(?i)\b(expire|suspend|terminate|deactivate|close your account)\b`),
			regexp.MustCompile(`(?i)\b(within 24 hours|within 48 hours|today only)\b`),
			regexp.MustCompile(`(?i)\b(final notice|last warning|immediate action required)\b`),
		},
		CredentialPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(verify your|confirm your|update your)\s+(account|password|credentials|identity)\b`),
			regexp.MustCompile(`(?i)\b(login|sign in|log in)\s+(here|now|to)\b`),
			regexp.MustCompile(`(?i)\b(enter your|provide your)\s+(password|credentials|ssn|social security)\b`),
			regexp.MustCompile(`(?i)\b(click here to|click the link|click below)\b`),
		},
		ImpersonationPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(paypal|microsoft|apple|amazon|netflix|bank of|wells fargo|chase)\b`),
			regexp.MustCompile(`(?i)\b(security team|support team|customer service|help desk)\b`),
			regexp.MustCompile(`(?i)\b(official|authorized|verified)\b`),
		},
		Shorteners: []string{
			"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd",
			"buff.ly", "adf.ly", "bit.do", "mcaf.ee", "su.pr", "tiny.cc",
		},
		DangerousExtensions: []string{"exe", "scr", "bat", "cmd", "ps1", "vbs", "js", "jar", "msi"},
		ArchiveExtensions:   []string{"zip", "rar", "7z", "iso", "img"},
	}
}

// WithBrands returns a copy of c with an extra impersonation pattern
// matching any of the given brand names. Empty names are ignored.
func (c *Config) WithBrands(brands []string) *Config {
	var quoted []string
	for _, b := range brands {
		if b = strings.TrimSpace(b); b != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(b)))
		}
	}
	out := *c
	if len(quoted) == 0 {
		return &out
	}
	out.ImpersonationPatterns = append(append([]*regexp.Regexp(nil), c.ImpersonationPatterns...),
		regexp.MustCompile(`(?i)\b(`+strings.Join(quoted, "|")+`)\b`))
	return &out
}
