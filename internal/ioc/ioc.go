// Package ioc extracts display-safe indicators of compromise from a
// normalized message.
package ioc

import (
	"fmt"
	"strings"

	"github.com/shineum/phishtriage/internal/email"
)

// Set holds the defanged indicators of one message.
type Set struct {
	Domains           []string           `json:"domains"`
	URLs              []string           `json:"urls"`
	IPAddresses       []string           `json:"ip_addresses"`
	EmailAddresses    []string           `json:"email_addresses"`
	FileHashes        []FileHash         `json:"file_hashes"`
	HeadersOfInterest []HeaderOfInterest `json:"headers_of_interest"`
}

// FileHash pairs an attachment name with its SHA-256 digest.
type FileHash struct {
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
}

// HeaderOfInterest is a header (real or synthesized) worth an analyst's attention.
type HeaderOfInterest struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

const maxReceived = 3

// Extract builds the indicator set for e. The Email is not modified.
func Extract(e *email.Email) Set {
	set := Set{
		Domains:           mapStrings(e.Domains, DefangDomain),
		URLs:              mapStrings(e.URLs, DefangURL),
		IPAddresses:       mapStrings(e.IPAddresses, DefangIP),
		EmailAddresses:    mapStrings(e.EmailAddresses, DefangEmail),
		FileHashes:        make([]FileHash, 0, len(e.Attachments)),
		HeadersOfInterest: headersOfInterest(e),
	}
	for _, a := range e.Attachments {
		set.FileHashes = append(set.FileHashes, FileHash{Filename: a.Filename, SHA256: a.SHA256})
	}
	return set
}

func headersOfInterest(e *email.Email) []HeaderOfInterest {
	out := []HeaderOfInterest{}
	received := 0
	for _, h := range e.Headers {
		switch {
		case strings.EqualFold(h.Name, "X-Originating-IP"):
			out = append(out, HeaderOfInterest{Name: "X-Originating-IP", Value: h.Value, Reason: "Source IP of the email sender"})
		case strings.EqualFold(h.Name, "X-Mailer"):
			out = append(out, HeaderOfInterest{Name: "X-Mailer", Value: h.Value, Reason: "Email client used to send the message"})
		case strings.EqualFold(h.Name, "Received"):
			if received < maxReceived && strings.Contains(strings.ToLower(h.Value), "from") {
				received++
				out = append(out, HeaderOfInterest{Name: "Received", Value: h.Value, Reason: "Email routing information"})
			}
		}
	}

	if e.ReturnPathMismatch() {
		out = append(out, HeaderOfInterest{
			Name:   "Return-Path Mismatch",
			Value:  fmt.Sprintf("From: %s | Return-Path: %s", e.From, *e.ReturnPath),
			Reason: "Return-Path does not match From address - possible spoofing",
		})
	}
	if e.ReplyToMismatch() {
		out = append(out, HeaderOfInterest{
			Name:   "Reply-To Mismatch",
			Value:  fmt.Sprintf("From: %s | Reply-To: %s", e.From, *e.ReplyTo),
			Reason: "Reply-To does not match From address - possible redirect",
		})
	}

	auth := e.Authentication
	out = append(out,
		HeaderOfInterest{Name: "SPF", Value: string(auth.SPFStatus), Reason: "SPF validation result"},
		HeaderOfInterest{Name: "DKIM", Value: string(auth.DKIMStatus), Reason: "DKIM validation result"},
		HeaderOfInterest{Name: "DMARC", Value: string(auth.DMARCStatus), Reason: "DMARC validation result"},
	)
	return out
}

func mapStrings(in []string, fn func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, fn(s))
	}
	return out
}
