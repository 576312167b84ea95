// Package email defines the normalized email data model shared by the analysis pipeline.
package email

import (
	"regexp"
	"strings"
)

// Email is a decoded message reduced to the fields the analysis stages consume.
// It is built once by the normalizer and treated as read-only afterwards.
type Email struct {
	ID             string               `json:"id"`
	Subject        string               `json:"subject"`
	From           string               `json:"from"`
	To             string               `json:"to"`
	ReplyTo        *string              `json:"reply_to"`
	ReturnPath     *string              `json:"return_path"`
	Date           *string              `json:"date"`
	Headers        []Header             `json:"headers"`
	BodyText       string               `json:"body_text"`
	BodyHTML       string               `json:"body_html"`
	URLs           []string             `json:"urls"`
	Domains        []string             `json:"domains"`
	IPAddresses    []string             `json:"ip_addresses"`
	EmailAddresses []string             `json:"email_addresses"`
	Attachments    []Attachment         `json:"attachments"`
	Authentication AuthenticationResult `json:"authentication"`
	RawContent     string               `json:"raw_content"`
}

// Header is a single header field. Order and duplicates are significant.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attachment describes a file carried by the message.
type Attachment struct {
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	Size         int    `json:"size"`
	SHA256       string `json:"sha256"`
	PreviewError string `json:"preview_error,omitempty"`
	Blob         Blob   `json:"-"`
}

// Blob is the decoded attachment content tagged with its content type.
type Blob struct {
	Type string
	Data []byte
}

// Preview kinds reported by Blob.Kind.
const (
	KindPDF     = "pdf"
	KindImage   = "image"
	KindText    = "text"
	KindUnknown = "unknown"
)

// Kind reports how a viewer could render the blob.
func (b Blob) Kind() string {
	t := strings.ToLower(b.Type)
	switch {
	case t == "application/pdf":
		return KindPDF
	case strings.HasPrefix(t, "image/"):
		return KindImage
	case strings.HasPrefix(t, "text/"), t == "application/json":
		return KindText
	default:
		return KindUnknown
	}
}

// AuthStatus is the classified outcome of one sender-authentication mechanism.
type AuthStatus string

const (
	AuthPass     AuthStatus = "pass"
	AuthFail     AuthStatus = "fail"
	AuthSoftFail AuthStatus = "softfail"
	AuthNeutral  AuthStatus = "neutral"
	AuthNone     AuthStatus = "none"
	AuthPresent  AuthStatus = "present"
	AuthUnknown  AuthStatus = "unknown"
)

// AuthenticationResult holds the SPF, DKIM and DMARC classification
// together with the raw header text it was derived from.
type AuthenticationResult struct {
	SPF         string     `json:"spf,omitempty"`
	DKIM        string     `json:"dkim,omitempty"`
	DMARC       string     `json:"dmarc,omitempty"`
	SPFStatus   AuthStatus `json:"spf_status"`
	DKIMStatus  AuthStatus `json:"dkim_status"`
	DMARCStatus AuthStatus `json:"dmarc_status"`
}

// ReturnPathMismatch reports whether From and Return-Path are both present
// and neither contains the other, compared case-insensitively.
func (e *Email) ReturnPathMismatch() bool {
	if e.From == "" || e.ReturnPath == nil || *e.ReturnPath == "" {
		return false
	}
	from := strings.ToLower(e.From)
	rp := strings.ToLower(*e.ReturnPath)
	return !strings.Contains(from, rp) && !strings.Contains(rp, from)
}

// ReplyToMismatch reports whether From and Reply-To are both present and
// From does not contain Reply-To, compared case-insensitively.
func (e *Email) ReplyToMismatch() bool {
	if e.From == "" || e.ReplyTo == nil || *e.ReplyTo == "" {
		return false
	}
	return !strings.Contains(strings.ToLower(e.From), strings.ToLower(*e.ReplyTo))
}

var senderDomainRegex = regexp.MustCompile(`@([^\s>]+)`)

// SenderDomain returns the lower-cased domain of the From address, or ""
// when it has none.
func (e *Email) SenderDomain() string {
	m := senderDomainRegex.FindStringSubmatch(e.From)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
