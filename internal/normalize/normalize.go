// Package normalize turns a decoded message into the Email record consumed
// by the analysis stages.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/shineum/phishtriage/internal/auth"
	"github.com/shineum/phishtriage/internal/email"
	"github.com/shineum/phishtriage/internal/parser"
)

// ID returns the deterministic fingerprint of a raw message: the 64-bit
// xxHash of its bytes as 16 lowercase hex digits.
func ID(raw []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}

// Normalize builds the Email record for a decoded message. raw must be the
// exact input the message was decoded from.
func Normalize(msg *parser.Message, raw []byte) *email.Email {
	if msg == nil {
		msg = &parser.Message{}
	}
	headers := make([]email.Header, len(msg.Headers))
	copy(headers, msg.Headers)

	bodyText := msg.Text
	if strings.TrimSpace(bodyText) == "" && msg.HTML != "" {
		bodyText = htmlToText(msg.HTML)
	}

	e := &email.Email{
		ID:          ID(raw),
		Subject:     msg.Subject,
		From:        formatFrom(msg.From),
		To:          joinAddresses(msg.To),
		ReplyTo:     optional(joinAddresses(msg.ReplyTo)),
		ReturnPath:  optional(firstHeader(headers, "Return-Path")),
		Headers:     headers,
		BodyText:    bodyText,
		BodyHTML:    msg.HTML,
		Attachments: buildAttachments(msg.Attachments),
		RawContent:  string(raw),
	}
	if !msg.Date.IsZero() {
		d := msg.Date.UTC().Format(time.RFC3339)
		e.Date = &d
	}

	e.URLs = extractURLs(bodyText, msg.HTML)
	e.Domains = extractDomains(e.URLs, bodyText)
	e.IPAddresses = extractIPs(headers)
	e.EmailAddresses = extractEmails(bodyText, headers)
	e.Authentication = auth.Classify(headers)
	return e
}

func formatFrom(from []parser.Address) string {
	if len(from) == 0 {
		return ""
	}
	return from[0].String()
}

func joinAddresses(list []parser.Address) string {
	addrs := make([]string, 0, len(list))
	for _, a := range list {
		if a.Address != "" {
			addrs = append(addrs, a.Address)
		}
	}
	return strings.Join(addrs, ", ")
}

func firstHeader(headers []email.Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return strings.TrimSpace(h.Value)
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
