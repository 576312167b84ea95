package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	standardtls "crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func leafOf(t *testing.T, cert *standardtls.Certificate) *x509.Certificate {
	t.Helper()
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return leaf
}

func ipStrings(leaf *x509.Certificate) []string {
	var out []string
	for _, ip := range leaf.IPAddresses {
		out = append(out, ip.String())
	}
	return out
}

func TestGenerateSelfSignedCert(t *testing.T) {
	t.Parallel()

	cert, err := GenerateSelfSignedCert("intake.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf := leafOf(t, cert)

	if leaf.Subject.CommonName != "intake.example.com" {
		t.Errorf("CN: got %q, want %q", leaf.Subject.CommonName, "intake.example.com")
	}
	if !slices.Equal(leaf.DNSNames, []string{"intake.example.com", "localhost"}) {
		t.Errorf("DNS SANs: got %v", leaf.DNSNames)
	}
	if ips := ipStrings(leaf); !slices.Contains(ips, "127.0.0.1") || !slices.Contains(ips, "::1") {
		t.Errorf("IP SANs: got %v, want loopback addresses", ips)
	}

	// Verify validity period (approximately 1 year)
	validDuration := leaf.NotAfter.Sub(leaf.NotBefore)
	if validDuration < certValidity-time.Hour || validDuration > certValidity+time.Hour {
		t.Errorf("validity duration: got %v, want approximately %v", validDuration, certValidity)
	}

	// Verify the key is ECDSA P-256
	ecKey, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		t.Fatal("public key is not ECDSA")
	}
	if ecKey.Curve != elliptic.P256() {
		t.Errorf("curve: got %v, want P-256", ecKey.Curve.Params().Name)
	}

	if err := leaf.CheckSignatureFrom(leaf); err != nil {
		t.Errorf("certificate is not self-signed: %v", err)
	}
	if err := leaf.VerifyHostname("intake.example.com"); err != nil {
		t.Errorf("VerifyHostname: %v", err)
	}
}

func TestGenerateSelfSignedCert_Hostnames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hostname string
		wantCN   string
		wantDNS  []string
		wantIP   string
	}{
		{hostname: "", wantCN: "localhost", wantDNS: []string{"localhost"}},
		{hostname: "localhost", wantCN: "localhost", wantDNS: []string{"localhost"}},
		{hostname: "10.0.0.25", wantCN: "10.0.0.25", wantDNS: []string{"localhost"}, wantIP: "10.0.0.25"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			t.Parallel()
			cert, err := GenerateSelfSignedCert(tt.hostname)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			leaf := leafOf(t, cert)
			if leaf.Subject.CommonName != tt.wantCN {
				t.Errorf("CN: got %q, want %q", leaf.Subject.CommonName, tt.wantCN)
			}
			if !slices.Equal(leaf.DNSNames, tt.wantDNS) {
				t.Errorf("DNS SANs: got %v, want %v", leaf.DNSNames, tt.wantDNS)
			}
			if tt.wantIP != "" && !slices.Contains(ipStrings(leaf), tt.wantIP) {
				t.Errorf("IP SANs: got %v, want to contain %s", ipStrings(leaf), tt.wantIP)
			}
		})
	}
}

func TestLoadOrGenerateTLS_SelfSigned(t *testing.T) {
	t.Parallel()

	tlsConfig, err := LoadOrGenerateTLS("", "", "intake.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Fatalf("Certificates: got %d, want 1", len(tlsConfig.Certificates))
	}
	if tlsConfig.MinVersion != standardtls.VersionTLS12 {
		t.Errorf("MinVersion: got %d, want TLS 1.2 (%d)", tlsConfig.MinVersion, standardtls.VersionTLS12)
	}
	if cn := leafOf(t, &tlsConfig.Certificates[0]).Subject.CommonName; cn != "intake.example.com" {
		t.Errorf("CN: got %q", cn)
	}
}

func TestLoadOrGenerateTLS_FromFiles(t *testing.T) {
	t.Parallel()

	certPEM, keyPEM, err := generatePEM("files.example.com")
	if err != nil {
		t.Fatalf("generatePEM: %v", err)
	}
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	tlsConfig, err := LoadOrGenerateTLS(certFile, keyFile, "ignored.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cn := leafOf(t, &tlsConfig.Certificates[0]).Subject.CommonName; cn != "files.example.com" {
		t.Errorf("CN: got %q, want the loaded certificate's %q", cn, "files.example.com")
	}
}

func TestLoadOrGenerateTLS_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		certFile string
		keyFile  string
	}{
		{"missing files", "/nonexistent/cert.pem", "/nonexistent/key.pem"},
		{"cert only", "/nonexistent/cert.pem", ""},
		{"key only", "", "/nonexistent/key.pem"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := LoadOrGenerateTLS(tt.certFile, tt.keyFile, "localhost"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
