package auth

import (
	"testing"

	"github.com/shineum/phishtriage/internal/email"
)

func TestClassifySPF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []email.Header
		want    email.AuthStatus
	}{
		{
			name:    "no headers",
			headers: nil,
			want:    email.AuthUnknown,
		},
		{
			name:    "explicit pass token",
			headers: []email.Header{{Name: "Authentication-Results", Value: "mx.example.com; spf=pass smtp.mailfrom=example.com"}},
			want:    email.AuthPass,
		},
		{
			name:    "explicit fail token",
			headers: []email.Header{{Name: "Authentication-Results", Value: "mx.example.com; SPF=FAIL smtp.mailfrom=evil.test"}},
			want:    email.AuthFail,
		},
		{
			name:    "explicit softfail token",
			headers: []email.Header{{Name: "Authentication-Results", Value: "mx.example.com; spf=softfail"}},
			want:    email.AuthSoftFail,
		},
		{
			name:    "explicit neutral token",
			headers: []email.Header{{Name: "Authentication-Results", Value: "mx.example.com; spf=neutral"}},
			want:    email.AuthNeutral,
		},
		{
			name:    "token in received-spf",
			headers: []email.Header{{Name: "Received-SPF", Value: "spf=fail (sender not permitted)"}},
			want:    email.AuthFail,
		},
		{
			name:    "received-spf pass wording",
			headers: []email.Header{{Name: "Received-SPF", Value: "Pass (mx.example.com: domain designates 1.2.3.4 as permitted sender)"}},
			want:    email.AuthPass,
		},
		{
			name:    "received-spf softfail wording",
			headers: []email.Header{{Name: "Received-SPF", Value: "SoftFail (domain of transitioning sender)"}},
			want:    email.AuthSoftFail,
		},
		{
			name:    "received-spf fail wording",
			headers: []email.Header{{Name: "received-spf", Value: "Fail (domain does not designate sender)"}},
			want:    email.AuthFail,
		},
		{
			name:    "received-spf pass and fail wording counts as fail",
			headers: []email.Header{{Name: "Received-SPF", Value: "fail (passed through relay)"}},
			want:    email.AuthFail,
		},
		{
			name:    "received-spf neutral wording",
			headers: []email.Header{{Name: "Received-SPF", Value: "Neutral (no policy)"}},
			want:    email.AuthNeutral,
		},
		{
			name:    "explicit token beats received-spf wording",
			headers: []email.Header{
				{Name: "Received-SPF", Value: "Fail (domain does not designate sender)"},
				{Name: "Authentication-Results", Value: "mx; spf=pass"},
			},
			want: email.AuthPass,
		},
		{
			name:    "unrelated wording",
			headers: []email.Header{{Name: "Received-SPF", Value: "temperror"}},
			want:    email.AuthUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.headers).SPFStatus
			if got != tt.want {
				t.Errorf("SPFStatus: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyDKIM(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []email.Header
		want    email.AuthStatus
	}{
		{"none", nil, email.AuthUnknown},
		{"pass", []email.Header{{Name: "Authentication-Results", Value: "mx; dkim=pass header.d=example.com"}}, email.AuthPass},
		{"fail", []email.Header{{Name: "Authentication-Results", Value: "mx; dkim=fail"}}, email.AuthFail},
		{"signature only", []email.Header{{Name: "DKIM-Signature", Value: "v=1; a=rsa-sha256; d=example.com"}}, email.AuthPresent},
		{
			"verdict beats signature",
			[]email.Header{
				{Name: "DKIM-Signature", Value: "v=1; d=example.com"},
				{Name: "Authentication-Results", Value: "mx; dkim=fail"},
			},
			email.AuthFail,
		},
		{"received-spf is not consulted", []email.Header{{Name: "Received-SPF", Value: "dkim=pass"}}, email.AuthUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.headers).DKIMStatus
			if got != tt.want {
				t.Errorf("DKIMStatus: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyDMARC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  email.AuthStatus
	}{
		{"mx; dmarc=pass", email.AuthPass},
		{"mx; dmarc=fail (p=reject)", email.AuthFail},
		{"mx; dmarc=none", email.AuthNone},
		{"mx; spf=pass", email.AuthUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			got := Classify([]email.Header{{Name: "Authentication-Results", Value: tt.value}}).DMARCStatus
			if got != tt.want {
				t.Errorf("DMARCStatus: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyKeepsRawText(t *testing.T) {
	t.Parallel()

	ar := "mx.example.com; spf=fail; dkim=fail; dmarc=fail"
	got := Classify([]email.Header{
		{Name: "Authentication-Results", Value: ar},
		{Name: "Received-SPF", Value: "Fail"},
	})

	if got.SPF != "Fail" {
		t.Errorf("SPF: got %q, want %q", got.SPF, "Fail")
	}
	if got.DKIM != ar {
		t.Errorf("DKIM: got %q, want %q", got.DKIM, ar)
	}
	if got.DMARC != ar {
		t.Errorf("DMARC: got %q, want %q", got.DMARC, ar)
	}
}
