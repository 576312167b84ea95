package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shineum/phishtriage/internal/email"
)

var (
	urlRegex      = regexp.MustCompile(`https?://[^\s<>"'\)}\]>]+`)
	emailRegex    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	ipRegex       = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)
	domainRegex   = regexp.MustCompile(`(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}`)
	trailingPunct = regexp.MustCompile(`[.,)\]>;]+$`)
)

var (
	assetSuffixes     = []string{".png", ".jpg", ".gif", ".css"}
	privateIPPrefixes = []string{"10.", "192.168.", "127.", "0."}
)

// set keeps first-seen order while dropping duplicates.
type set struct {
	seen  map[string]struct{}
	items []string
}

func newSet() *set {
	return &set{seen: make(map[string]struct{}), items: []string{}}
}

func (s *set) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

// extractURLs collects http(s) URLs from both bodies and href targets.
func extractURLs(text, html string) []string {
	urls := newSet()
	for _, body := range []string{text, html} {
		for _, m := range urlRegex.FindAllString(body, -1) {
			urls.add(trailingPunct.ReplaceAllString(m, ""))
		}
	}
	for _, href := range hrefs(html) {
		urls.add(trailingPunct.ReplaceAllString(href, ""))
	}
	return urls.items
}

// hrefs returns every href attribute in the document that starts with http.
func hrefs(html string) []string {
	if strings.TrimSpace(html) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(strings.ToLower(href), "http") {
			out = append(out, href)
		}
	})
	return out
}

// extractDomains returns URL hostnames followed by domain-like tokens in the
// body text, lower-cased. Asset filenames are not domains.
func extractDomains(urls []string, text string) []string {
	domains := newSet()
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		domains.add(strings.ToLower(u.Hostname()))
	}
	for _, m := range domainRegex.FindAllString(text, -1) {
		d := strings.ToLower(m)
		if hasAnySuffix(d, assetSuffixes) {
			continue
		}
		domains.add(d)
	}
	return domains.items
}

// extractIPs scans header values only; private and loopback ranges are dropped.
func extractIPs(headers []email.Header) []string {
	ips := newSet()
	for _, h := range headers {
		for _, m := range ipRegex.FindAllString(h.Value, -1) {
			if hasAnyPrefix(m, privateIPPrefixes) {
				continue
			}
			ips.add(m)
		}
	}
	return ips.items
}

func extractEmails(text string, headers []email.Header) []string {
	addrs := newSet()
	for _, m := range emailRegex.FindAllString(text, -1) {
		addrs.add(strings.ToLower(m))
	}
	for _, h := range headers {
		for _, m := range emailRegex.FindAllString(h.Value, -1) {
			addrs.add(strings.ToLower(m))
		}
	}
	return addrs.items
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
