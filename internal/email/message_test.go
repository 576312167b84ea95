package email

import "testing"

func strPtr(s string) *string { return &s }

func TestBlobKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        string
	}{
		{"application/pdf", KindPDF},
		{"Application/PDF", KindPDF},
		{"image/png", KindImage},
		{"text/plain", KindText},
		{"application/json", KindText},
		{"application/zip", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		if got := (Blob{Type: tt.contentType}).Kind(); got != tt.want {
			t.Errorf("Kind(%q): got %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestSenderDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from string
		want string
	}{
		{"PayPal <alerts@PayPal.com>", "paypal.com"},
		{"alerts@mail.example.org", "mail.example.org"},
		{"no address here", ""},
		{"", ""},
	}
	for _, tt := range tests {
		e := &Email{From: tt.from}
		if got := e.SenderDomain(); got != tt.want {
			t.Errorf("SenderDomain(%q): got %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestReturnPathMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		from       string
		returnPath *string
		want       bool
	}{
		{"absent", "a@example.com", nil, false},
		{"empty", "a@example.com", strPtr(""), false},
		{"contained", "Alice <a@example.com>", strPtr("a@example.com"), false},
		{"case-insensitive", "A@Example.com", strPtr("a@example.com"), false},
		{"different", "a@example.com", strPtr("<bounce@attacker.test>"), true},
		{"no from", "", strPtr("bounce@attacker.test"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Email{From: tt.from, ReturnPath: tt.returnPath}
			if got := e.ReturnPathMismatch(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReplyToMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    string
		replyTo *string
		want    bool
	}{
		{"absent", "a@example.com", nil, false},
		{"same", "Alice <a@example.com>", strPtr("A@EXAMPLE.COM"), false},
		{"different", "alerts@paypal.com", strPtr("desk@gmail.com"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Email{From: tt.from, ReplyTo: tt.replyTo}
			if got := e.ReplyToMismatch(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
