// Package threat scores a normalized message against a declarative table of
// phishing heuristics and maps the total to a risk level.
package threat

import (
	"strings"

	"github.com/shineum/phishtriage/internal/email"
)

// Severity of a single indicator.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Level is the overall risk band of a message.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Score thresholds for the risk bands.
const (
	HighThreshold   = 50
	MediumThreshold = 25
)

// Indicator is one triggered rule occurrence.
type Indicator struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Details     string   `json:"details,omitempty"`
}

// Assessment is the scored result for one message.
type Assessment struct {
	Level      Level       `json:"level"`
	Score      int         `json:"score"`
	Indicators []Indicator `json:"indicators"`
	Summary    string      `json:"summary"`
}

// Hit is one occurrence reported by a rule matcher. An empty Description
// falls back to the rule's own.
type Hit struct {
	Description string
	Details     string
}

// Rule is one row of the scoring table. Every hit adds Weight, except that a
// Once rule counts at most its first hit.
type Rule struct {
	Name        string
	Category    string
	Description string
	Severity    Severity
	Weight      int
	Once        bool
	Match       func(e *email.Email) []Hit
}

// Scorer evaluates a fixed rule table. It holds no mutable state and is safe
// for concurrent use.
type Scorer struct {
	rules []Rule
}

// New returns a Scorer using the default rule table built from cfg.
// A nil cfg means DefaultConfig.
func New(cfg *Config) *Scorer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewWithRules(DefaultRules(cfg))
}

// NewWithRules returns a Scorer evaluating exactly the given rules.
func NewWithRules(rules []Rule) *Scorer {
	return &Scorer{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the scorer's table.
func (s *Scorer) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// Assess runs every rule against e. It never fails; a nil Email scores as
// an empty one.
func (s *Scorer) Assess(e *email.Email) Assessment {
	if e == nil {
		e = &email.Email{}
	}

	a := Assessment{Indicators: []Indicator{}}
	for _, r := range s.rules {
		if r.Match == nil {
			continue
		}
		hits := r.Match(e)
		if r.Once && len(hits) > 1 {
			hits = hits[:1]
		}
		for _, h := range hits {
			desc := h.Description
			if desc == "" {
				desc = r.Description
			}
			a.Score += r.Weight
			a.Indicators = append(a.Indicators, Indicator{
				Category:    r.Category,
				Description: desc,
				Severity:    r.Severity,
				Details:     h.Details,
			})
		}
	}

	a.Level = LevelFor(a.Score)
	a.Summary = Summary(a.Level)
	return a
}

// LevelFor maps a score to its risk band.
func LevelFor(score int) Level {
	switch {
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Summary returns the fixed summary sentence for a level.
func Summary(level Level) string {
	switch level {
	case LevelHigh:
		return "This email shows multiple high-risk indicators consistent with phishing or malicious intent."
	case LevelMedium:
		return "This email shows some suspicious characteristics that warrant caution."
	default:
		return "This email shows minimal suspicious indicators but should still be verified."
	}
}

// ParseLevel converts a configured level name, case-insensitively.
func ParseLevel(s string) (Level, bool) {
	switch {
	case strings.EqualFold(s, string(LevelHigh)):
		return LevelHigh, true
	case strings.EqualFold(s, string(LevelMedium)):
		return LevelMedium, true
	case strings.EqualFold(s, string(LevelLow)):
		return LevelLow, true
	}
	return "", false
}

// AtLeast reports whether l is the same as or riskier than min.
func (l Level) AtLeast(min Level) bool {
	return rank(l) >= rank(min)
}

func rank(l Level) int {
	switch l {
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}
