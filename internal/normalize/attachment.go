package normalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/shineum/phishtriage/internal/email"
	"github.com/shineum/phishtriage/internal/parser"
)

const (
	defaultFilename    = "unknown"
	defaultContentType = "application/octet-stream"
	pdfMagic           = "%PDF-"

	pdfHeaderMismatch = "Attachment is labeled PDF but does not contain a valid PDF header (%PDF-). " +
		"Bytes may be truncated or decoded incorrectly."
)

// buildAttachments coerces and hashes every attachment. Hashing runs in one
// goroutine per attachment; all of them finish before the slice is returned.
func buildAttachments(parts []parser.Attachment) []email.Attachment {
	result := make([]email.Attachment, len(parts))

	var wg sync.WaitGroup
	for i, p := range parts {
		filename := p.Filename
		if filename == "" {
			filename = defaultFilename
		}
		contentType := p.ContentType
		if contentType == "" {
			contentType = defaultContentType
		}
		data := toBytes(p.Content, filename)

		result[i] = email.Attachment{
			Filename:    filename,
			ContentType: contentType,
			Size:        len(data),
			Blob:        email.Blob{Type: contentType, Data: data},
		}
		if isPDF(filename, contentType) && !bytes.HasPrefix(data, []byte(pdfMagic)) {
			result[i].PreviewError = pdfHeaderMismatch
		}

		wg.Add(1)
		go func(i int, data []byte) {
			defer wg.Done()
			sum := sha256.Sum256(data)
			result[i].SHA256 = hex.EncodeToString(sum[:])
		}(i, data)
	}
	wg.Wait()

	return result
}

// toBytes normalizes the supported content forms to a byte slice. Content it
// cannot interpret becomes an empty buffer.
func toBytes(content any, filename string) []byte {
	switch c := content.(type) {
	case []byte:
		return bytes.Clone(c)
	case string:
		return decodeBase64Text(c)
	case interface{ Bytes() []byte }:
		return bytes.Clone(c.Bytes())
	case io.Reader:
		data, err := io.ReadAll(c)
		if err != nil {
			slog.Warn("failed to read attachment content, hashing empty buffer",
				"filename", filename,
				"error", err,
			)
			return []byte{}
		}
		return data
	default:
		slog.Warn("unsupported attachment content, hashing empty buffer",
			"filename", filename,
			"type", fmt.Sprintf("%T", content),
		)
		return []byte{}
	}
}

// decodeBase64Text treats s as base64 (whitespace ignored) and falls back to
// its UTF-8 bytes when it is not valid base64.
func decodeBase64Text(s string) []byte {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return []byte(s)
	}
	if decoded, err := base64.StdEncoding.DecodeString(cleaned); err == nil {
		return decoded
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(cleaned); err == nil {
		return decoded
	}
	return []byte(s)
}

func isPDF(filename, contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "pdf") ||
		strings.HasSuffix(strings.ToLower(filename), ".pdf")
}
