package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shineum/phishtriage/internal/email"
	"github.com/shineum/phishtriage/internal/redact"
	"github.com/shineum/phishtriage/internal/threat"
)

var fixedClock = func() time.Time {
	return time.Date(2025, 1, 7, 14, 0, 0, 0, time.UTC)
}

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/account_hold.eml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return raw
}

func TestAnalyzePhishingFixture(t *testing.T) {
	t.Parallel()

	a, err := New(WithClock(fixedClock)).Analyze(loadFixture(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := a.Email
	if e.Subject != "URGENT: Your PayPal account is on hold" {
		t.Errorf("Subject: got %q", e.Subject)
	}
	if e.From != "PayPal Security Team <alerts@paypal.com>" {
		t.Errorf("From: got %q", e.From)
	}
	if e.ReplyTo == nil || *e.ReplyTo != "paypal-restore-desk@gmail.com" {
		t.Errorf("ReplyTo: got %v", e.ReplyTo)
	}
	if e.ReturnPath == nil || *e.ReturnPath != "<bounce@attacker.test>" {
		t.Errorf("ReturnPath: got %v", e.ReturnPath)
	}
	if e.Date == nil || *e.Date != "2025-01-07T13:15:00Z" {
		t.Errorf("Date: got %v, want 2025-01-07T13:15:00Z", e.Date)
	}

	auth := e.Authentication
	if auth.SPFStatus != email.AuthFail || auth.DKIMStatus != email.AuthFail || auth.DMARCStatus != email.AuthFail {
		t.Errorf("Authentication: got %+v, want all fail", auth)
	}

	if !slices.Equal(e.IPAddresses, []string{"185.234.72.19"}) {
		t.Errorf("IPAddresses: got %v", e.IPAddresses)
	}
	wantURLs := []string{"https://bit.ly/restore-acct", "https://www.paypal-account-check.test/verify.php"}
	if !slices.Equal(e.URLs, wantURLs) {
		t.Errorf("URLs: got %v, want %v", e.URLs, wantURLs)
	}
	if !slices.Contains(e.EmailAddresses, "help@paypal-desk.test") {
		t.Errorf("EmailAddresses: got %v, want help@paypal-desk.test included", e.EmailAddresses)
	}

	// 3 x auth fail, both mismatches, urgency, credential, shortener, external link
	if a.Threat.Score != 150 {
		t.Errorf("Score: got %d, want 150 (%+v)", a.Threat.Score, a.Threat.Indicators)
	}
	if a.Threat.Level != threat.LevelHigh {
		t.Errorf("Level: got %q, want %q", a.Threat.Level, threat.LevelHigh)
	}

	if !strings.Contains(a.Redaction.RedactedText, "Dear [REDACTED-NAME],") {
		t.Errorf("RedactedText: got %q", a.Redaction.RedactedText)
	}
	if strings.Contains(a.Redaction.RedactedText, "1-800-555-0199") {
		t.Errorf("RedactedText still contains the phone number: %q", a.Redaction.RedactedText)
	}

	if !slices.Contains(a.IOCs.URLs, "hxxps://bit[.]ly/restore-acct") {
		t.Errorf("IOCs.URLs: got %v", a.IOCs.URLs)
	}
	if a.AnalyzedAt != "2025-01-07T14:00:00Z" {
		t.Errorf("AnalyzedAt: got %q, want %q", a.AnalyzedAt, "2025-01-07T14:00:00Z")
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	t.Parallel()

	raw := loadFixture(t)
	analyzer := New(WithClock(fixedClock))

	first, err := analyzer.Analyze(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := analyzer.Analyze(bytes.Clone(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Error("two analyses of the same input differ")
	}
}

func TestAnalyzeParseError(t *testing.T) {
	t.Parallel()

	for _, raw := range [][]byte{nil, []byte("\r\n"), []byte("no header block here")} {
		got, err := New().Analyze(raw)
		if got != nil {
			t.Errorf("Analyze(%q): got partial result", raw)
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Analyze(%q): got %v, want *ParseError", raw, err)
			continue
		}
		if !strings.HasPrefix(perr.Error(), "parse email: ") {
			t.Errorf("Error: got %q", perr.Error())
		}
	}
}

func TestAnalyzeOptions(t *testing.T) {
	t.Parallel()

	raw := loadFixture(t)
	a, err := New(
		WithRedaction(redact.Options{}),
		WithScorer(threat.NewWithRules(nil)),
	).Analyze(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Redaction.RedactionCount != 0 {
		t.Errorf("RedactionCount: got %d, want 0", a.Redaction.RedactionCount)
	}
	if a.Threat.Score != 0 || a.Threat.Level != threat.LevelLow {
		t.Errorf("Threat: got %d %q, want 0 Low", a.Threat.Score, a.Threat.Level)
	}
}

func TestAnalysisJSONShape(t *testing.T) {
	t.Parallel()

	a, err := New(WithClock(fixedClock)).Analyze(loadFixture(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"email", "redaction", "iocs", "threat", "analyzed_at"} {
		if _, ok := top[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
}
