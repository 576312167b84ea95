package ioc

import (
	"regexp"
	"strings"
)

var (
	schemeRegex = regexp.MustCompile(`(?i)^(h)(?:tt|xx)(ps?://)`)
	refang      = strings.NewReplacer("[.]", ".", "[@]", "@")
	defangDots  = strings.NewReplacer(".", "[.]")
	defangMail  = strings.NewReplacer(".", "[.]", "@", "[@]")
)

// DefangURL rewrites the scheme to hxxp/hxxps and brackets every dot.
func DefangURL(s string) string {
	s = schemeRegex.ReplaceAllString(refang.Replace(s), "${1}xx${2}")
	return defangDots.Replace(s)
}

// DefangDomain brackets every dot.
func DefangDomain(s string) string {
	return defangDots.Replace(refang.Replace(s))
}

// DefangIP brackets every dot.
func DefangIP(s string) string {
	return DefangDomain(s)
}

// DefangEmail brackets the at sign and every dot.
func DefangEmail(s string) string {
	return defangMail.Replace(refang.Replace(s))
}
