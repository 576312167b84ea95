// Package analysis runs the full pipeline over a raw message: decode,
// normalize, extract indicators, redact the body and score the threat.
package analysis

import (
	"fmt"
	"time"

	"github.com/shineum/phishtriage/internal/email"
	"github.com/shineum/phishtriage/internal/ioc"
	"github.com/shineum/phishtriage/internal/normalize"
	"github.com/shineum/phishtriage/internal/parser"
	"github.com/shineum/phishtriage/internal/redact"
	"github.com/shineum/phishtriage/internal/threat"
)

// Analysis is the complete result for one message. It is the only value
// consumed by exporters, sinks and history stores.
type Analysis struct {
	Email      *email.Email      `json:"email"`
	Redaction  redact.Result     `json:"redaction"`
	IOCs       ioc.Set           `json:"iocs"`
	Threat     threat.Assessment `json:"threat"`
	AnalyzedAt string            `json:"analyzed_at"`
}

// ParseError reports that the raw input could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse email: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Analyzer holds the read-only configuration of the pipeline and is safe for
// concurrent use.
type Analyzer struct {
	scorer    *threat.Scorer
	redaction redact.Options
	now       func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithScorer replaces the default threat scorer.
func WithScorer(s *threat.Scorer) Option {
	return func(a *Analyzer) { a.scorer = s }
}

// WithRedaction sets the redaction categories applied to the body text.
func WithRedaction(opts redact.Options) Option {
	return func(a *Analyzer) { a.redaction = opts }
}

// WithClock sets the time source for analyzed_at.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New returns an Analyzer with the default rules and redaction options.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		scorer:    threat.New(nil),
		redaction: redact.DefaultOptions(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the pipeline. Decode failures are returned as *ParseError and
// no partial result is produced.
func (a *Analyzer) Analyze(raw []byte) (*Analysis, error) {
	msg, err := parser.Parse(raw)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return a.AnalyzeMessage(msg, raw), nil
}

// AnalyzeMessage runs the pipeline over an already decoded message.
func (a *Analyzer) AnalyzeMessage(msg *parser.Message, raw []byte) *Analysis {
	e := normalize.Normalize(msg, raw)
	return &Analysis{
		Email:      e,
		Redaction:  redact.Redact(e.BodyText, a.redaction),
		IOCs:       ioc.Extract(e),
		Threat:     a.scorer.Assess(e),
		AnalyzedAt: a.now().UTC().Format(time.RFC3339),
	}
}

// String is a one-line description used in logs and SMTP replies.
func (a *Analysis) String() string {
	return fmt.Sprintf("analysis %s level %s score %d", a.Email.ID, a.Threat.Level, a.Threat.Score)
}
