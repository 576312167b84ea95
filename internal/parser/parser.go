// Package parser decodes raw RFC 5322 messages, including MIME multipart
// structures, into the decoded form consumed by the normalizer.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"github.com/shineum/phishtriage/internal/email"
)

// Message is a decoded message. Headers keep their original order, spelling
// and duplicates.
type Message struct {
	Headers     []email.Header
	From        []Address
	To          []Address
	ReplyTo     []Address
	Subject     string
	Date        time.Time
	Text        string
	HTML        string
	Attachments []Attachment
}

// Address is a mailbox with an optional display name.
type Address struct {
	Name    string
	Address string
}

// String renders the address as "Name <addr>" or just "addr".
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return a.Name + " <" + a.Address + ">"
}

// Attachment is a decoded attachment part. Content is normally a []byte but
// callers building a Message by hand may supply other forms.
type Attachment struct {
	Filename    string
	ContentType string
	Content     any
}

var errNoHeaders = errors.New("message has no header fields")

// Parse decodes a raw message. It fails only when the header block cannot be
// read; unreadable parts are logged as warnings and skipped.
func Parse(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty message")
	}

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	if err != nil {
		slog.Warn("unknown message charset, decoding as-is", "error", err)
	}

	result := &Message{
		Headers: readHeaders(&mr.Header.Header),
	}
	if len(result.Headers) == 0 {
		return nil, errNoHeaders
	}

	result.From = readAddresses(mr.Header, "From")
	result.To = readAddresses(mr.Header, "To")
	result.ReplyTo = readAddresses(mr.Header, "Reply-To")

	if subject, err := mr.Header.Subject(); err == nil {
		result.Subject = subject
	} else {
		result.Subject = mr.Header.Get("Subject")
	}
	if date, err := mr.Header.Date(); err == nil {
		result.Date = date
	}

	mediaType, params, err := mr.Header.ContentType()
	if err == nil && strings.HasPrefix(mediaType, "multipart/") && params["boundary"] == "" {
		slog.Warn("multipart message has no boundary, reading body as text",
			"content_type", mediaType,
		)
		result.Text = rawBody(raw)
		return result, nil
	}

	if err := readParts(mr, result); err != nil {
		return nil, err
	}
	return result, nil
}

// readParts walks every leaf part, keeping the first text/plain and
// text/html bodies and collecting attachments.
func readParts(mr *gomail.Reader, result *Message) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if message.IsUnknownCharset(err) && part != nil {
				slog.Warn("unknown part charset, decoding as-is", "error", err)
			} else if result.Text != "" || result.HTML != "" || len(result.Attachments) > 0 {
				slog.Warn("failed to read next part, keeping parts read so far", "error", err)
				return nil
			} else {
				return fmt.Errorf("failed to read message body: %w", err)
			}
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			mediaType, params, err := h.ContentType()
			if err != nil {
				mediaType = "text/plain"
			}
			content, err := io.ReadAll(part.Body)
			if err != nil {
				slog.Warn("failed to read part content",
					"content_type", mediaType,
					"error", err,
				)
				continue
			}
			switch {
			case mediaType == "text/plain" && result.Text == "":
				result.Text = string(content)
			case mediaType == "text/html" && result.HTML == "":
				result.HTML = string(content)
			case params["name"] != "":
				result.Attachments = append(result.Attachments, Attachment{
					Filename:    params["name"],
					ContentType: mediaType,
					Content:     content,
				})
			case mediaType == "text/plain" || mediaType == "text/html":
				// alternative bodies beyond the first are ignored
			default:
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
				)
			}

		case *gomail.AttachmentHeader:
			mediaType, params, err := h.ContentType()
			if err != nil {
				mediaType = ""
			}
			filename, err := h.Filename()
			if err != nil || filename == "" {
				filename = params["name"]
			}
			content, err := io.ReadAll(part.Body)
			if err != nil {
				slog.Warn("failed to read attachment content",
					"filename", filename,
					"error", err,
				)
				continue
			}
			result.Attachments = append(result.Attachments, Attachment{
				Filename:    filename,
				ContentType: mediaType,
				Content:     content,
			})
		}
	}
}

// rawBody returns everything after the blank line ending the header block.
func rawBody(raw []byte) string {
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return string(raw[crlf+4:])
	case lf >= 0:
		return string(raw[lf+2:])
	}
	return ""
}

// readHeaders returns header fields top to bottom. The textproto layer
// canonicalizes keys, so the name is recovered from the raw field bytes.
func readHeaders(h *message.Header) []email.Header {
	var headers []email.Header
	fields := h.Fields()
	for fields.Next() {
		name := fields.Key()
		if raw, err := fields.Raw(); err == nil {
			if i := bytes.IndexByte(raw, ':'); i > 0 {
				name = strings.TrimSpace(string(raw[:i]))
			}
		}
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		headers = append(headers, email.Header{Name: name, Value: unfold(value)})
	}
	return headers
}

// unfold joins folded header lines and collapses runs of whitespace.
func unfold(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// readAddresses parses an address list header, falling back to a comma
// split when the list is not valid RFC 5322.
func readAddresses(h gomail.Header, key string) []Address {
	raw := h.Get(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	list, err := h.AddressList(key)
	if err == nil {
		result := make([]Address, 0, len(list))
		for _, a := range list {
			result = append(result, Address{Name: a.Name, Address: a.Address})
		}
		return result
	}

	var result []Address
	for _, p := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		if a, err := mail.ParseAddress(trimmed); err == nil {
			result = append(result, Address{Name: a.Name, Address: a.Address})
			continue
		}
		result = append(result, Address{Address: trimmed})
	}
	return result
}
