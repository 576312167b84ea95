package redact

import (
	"strings"
	"testing"
)

func TestRedactSalutationName(t *testing.T) {
	t.Parallel()

	opts := Options{Names: true}
	got := Redact("Dear John, your account is fine.", opts)

	if got.RedactedText != "Dear [REDACTED-NAME], your account is fine." {
		t.Errorf("RedactedText: got %q, want %q", got.RedactedText, "Dear [REDACTED-NAME], your account is fine.")
	}
	if got.RedactionCount != 1 {
		t.Fatalf("RedactionCount: got %d, want 1", got.RedactionCount)
	}
	want := Redaction{Original: "John", Redacted: "[REDACTED-NAME]", RedactionType: "name"}
	if got.Redactions[0] != want {
		t.Errorf("Redactions[0]: got %+v, want %+v", got.Redactions[0], want)
	}
}

func TestRedactCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		opts     Options
		want     string
		wantType string
	}{
		{
			name:     "email keeps domain",
			text:     "write to john.doe@example.com now",
			opts:     Options{Emails: true},
			want:     "write to [REDACTED]@example.com now",
			wantType: TypeEmail,
		},
		{
			name:     "phone",
			text:     "call (555) 123-4567 today",
			opts:     Options{Phones: true},
			want:     "call [REDACTED-PHONE] today",
			wantType: TypePhone,
		},
		{
			name:     "phone with country code",
			text:     "call +1 555.123.4567",
			opts:     Options{Phones: true},
			want:     "call [REDACTED-PHONE]",
			wantType: TypePhone,
		},
		{
			name:     "credit card",
			text:     "card 4111111111111111 on file",
			opts:     Options{CreditCards: true},
			want:     "card [REDACTED-CC] on file",
			wantType: TypeCreditCard,
		},
		{
			name:     "ssn",
			text:     "ssn 123-45-6789.",
			opts:     Options{SSN: true},
			want:     "ssn [REDACTED-SSN].",
			wantType: TypeSSN,
		},
		{
			name:     "greeting is case-insensitive",
			text:     "HELLO Jane Smith, welcome",
			opts:     Options{Names: true},
			want:     "HELLO [REDACTED-NAME], welcome",
			wantType: TypeName,
		},
		{
			name:     "custom pattern",
			text:     "ticket INC-004211 opened",
			opts:     Options{CustomPatterns: []string{`INC-[0-9]+`}},
			want:     "ticket [REDACTED-CUSTOM] opened",
			wantType: TypeCustom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Redact(tt.text, tt.opts)
			if got.RedactedText != tt.want {
				t.Errorf("RedactedText: got %q, want %q", got.RedactedText, tt.want)
			}
			if got.RedactionCount != 1 {
				t.Fatalf("RedactionCount: got %d, want 1", got.RedactionCount)
			}
			if got.Redactions[0].RedactionType != tt.wantType {
				t.Errorf("RedactionType: got %q, want %q", got.Redactions[0].RedactionType, tt.wantType)
			}
		})
	}
}

func TestRedactDisabledCategoriesLeaveTextAlone(t *testing.T) {
	t.Parallel()

	text := "Dear John, mail john@example.com or call 555-123-4567."
	got := Redact(text, Options{})
	if got.RedactedText != text {
		t.Errorf("RedactedText: got %q, want %q", got.RedactedText, text)
	}
	if got.RedactionCount != 0 || len(got.Redactions) != 0 {
		t.Errorf("Redactions: got %d, want 0", got.RedactionCount)
	}
}

func TestRedactOrderAndRecords(t *testing.T) {
	t.Parallel()

	text := "Hi Alice, reach bob@example.com or 555-123-4567; SSN 123-45-6789."
	got := Redact(text, DefaultOptions())

	want := []Redaction{
		{Original: "bob@example.com", Redacted: "[REDACTED]@example.com", RedactionType: TypeEmail},
		{Original: "555-123-4567", Redacted: "[REDACTED-PHONE]", RedactionType: TypePhone},
		{Original: "123-45-6789", Redacted: "[REDACTED-SSN]", RedactionType: TypeSSN},
		{Original: "Alice", Redacted: "[REDACTED-NAME]", RedactionType: TypeName},
	}
	if len(got.Redactions) != len(want) {
		t.Fatalf("Redactions: got %+v, want %+v", got.Redactions, want)
	}
	for i := range want {
		if got.Redactions[i] != want[i] {
			t.Errorf("Redactions[%d]: got %+v, want %+v", i, got.Redactions[i], want[i])
		}
	}
	wantText := "Hi [REDACTED-NAME], reach [REDACTED]@example.com or [REDACTED-PHONE]; SSN [REDACTED-SSN]."
	if got.RedactedText != wantText {
		t.Errorf("RedactedText: got %q, want %q", got.RedactedText, wantText)
	}
}

func TestRedactIsIdempotent(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		"Dear John Smith,",
		"Your account john.smith@example.com was used from 555-123-4567.",
		"Reference SSN 123 45 6789 and ticket INC-42.",
	}, "\n")
	opts := DefaultOptions()
	opts.CustomPatterns = []string{`INC-[0-9]+`}

	first := Redact(text, opts)
	if first.RedactionCount == 0 {
		t.Fatal("expected redactions on first pass")
	}
	second := Redact(first.RedactedText, opts)
	if second.RedactionCount != 0 {
		t.Errorf("second pass RedactionCount: got %d, want 0 (%+v)", second.RedactionCount, second.Redactions)
	}
	if second.RedactedText != first.RedactedText {
		t.Errorf("second pass changed text: got %q, want %q", second.RedactedText, first.RedactedText)
	}
}

func TestRedactRoundTripAgainstSource(t *testing.T) {
	t.Parallel()

	text := "Hello Maria, your card 5500000000000004 and contact maria@example.org."
	opts := DefaultOptions()
	opts.Phones = false
	got := Redact(text, opts)

	replayed := text
	for _, r := range got.Redactions {
		replayed = strings.ReplaceAll(replayed, r.Original, r.Redacted)
	}
	if replayed != got.RedactedText {
		t.Errorf("replayed: got %q, want %q", replayed, got.RedactedText)
	}
}

func TestRedactInvalidCustomPatternIsSkipped(t *testing.T) {
	t.Parallel()

	opts := Options{CustomPatterns: []string{`(unclosed`, `secret-[a-z]+`}}
	got := Redact("the secret-token stays hidden", opts)

	if got.RedactedText != "the [REDACTED-CUSTOM] stays hidden" {
		t.Errorf("RedactedText: got %q, want %q", got.RedactedText, "the [REDACTED-CUSTOM] stays hidden")
	}
	if got.RedactionCount != 1 {
		t.Errorf("RedactionCount: got %d, want 1", got.RedactionCount)
	}
}

func TestRedactGreetingInsideWordIsIgnored(t *testing.T) {
	t.Parallel()

	got := Redact("This Report is ready", Options{Names: true})
	if got.RedactionCount != 0 {
		t.Errorf("RedactionCount: got %d, want 0 (%+v)", got.RedactionCount, got.Redactions)
	}
}

func TestRedactNameIgnoresCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"hello john, hi", "hello [REDACTED-NAME], hi"},
		{"DEAR JOHN, x", "DEAR [REDACTED-NAME], x"},
		{"Hey mary ann.", "Hey [REDACTED-NAME]."},
	}
	for _, tt := range tests {
		got := Redact(tt.text, Options{Names: true})
		if got.RedactedText != tt.want {
			t.Errorf("Redact(%q): got %q, want %q", tt.text, got.RedactedText, tt.want)
		}
		if got.RedactionCount != 1 {
			t.Errorf("Redact(%q) RedactionCount: got %d, want 1", tt.text, got.RedactionCount)
		}
	}
}

func TestRedactRunTogetherAddressesAreStable(t *testing.T) {
	t.Parallel()

	opts := Options{Emails: true}
	for _, text := range []string{"a@b.ioa@b.io", "x a@b.ioa@b.io y", "bob@example.comalice@example.org"} {
		first := Redact(text, opts)
		second := Redact(first.RedactedText, opts)
		if second.RedactedText != first.RedactedText {
			t.Errorf("Redact(%q) second pass: got %q, want %q", text, second.RedactedText, first.RedactedText)
		}
		if second.RedactionCount != 0 {
			t.Errorf("Redact(%q) second pass RedactionCount: got %d, want 0", text, second.RedactionCount)
		}
	}

	got := Redact("mail a@b.io today", opts)
	if got.RedactedText != "mail [REDACTED]@b.io today" {
		t.Errorf("RedactedText: got %q, want %q", got.RedactedText, "mail [REDACTED]@b.io today")
	}
}
