// Package stdout implements a Sink that prints the Markdown report.
package stdout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/export"
)

const separator = "========================================\n"

// Sink prints analysis reports in a human-readable format.
type Sink struct {
	writer io.Writer
}

// NewWithWriter creates a new stdout Sink that writes to the given writer.
func NewWithWriter(w io.Writer) *Sink {
	return &Sink{writer: w}
}

// Deliver prints the report between separator lines. It always returns nil;
// write failures are only logged.
func (s *Sink) Deliver(_ context.Context, a *analysis.Analysis) error {
	var b strings.Builder

	b.WriteString(separator)
	b.WriteString(export.Markdown(a))
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(separator)

	if _, err := fmt.Fprint(s.writer, b.String()); err != nil {
		slog.Warn("failed to write report", "id", a.Email.ID, "error", err)
	}
	return nil
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return "stdout"
}
