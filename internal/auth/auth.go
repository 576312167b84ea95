// Package auth classifies SPF, DKIM and DMARC outcomes from the
// authentication headers a receiving server recorded on a message.
package auth

import (
	"strings"

	"github.com/shineum/phishtriage/internal/email"
)

const (
	headerAuthResults = "Authentication-Results"
	headerReceivedSPF = "Received-SPF"
	headerDKIMSig     = "DKIM-Signature"
)

// Classify derives the authentication statuses from the message headers.
// All Authentication-Results and Received-SPF values are considered
// together; the raw text is kept on the result for display.
func Classify(headers []email.Header) email.AuthenticationResult {
	var authResults, receivedSPF []string
	hasSignature := false
	for _, h := range headers {
		switch {
		case strings.EqualFold(h.Name, headerAuthResults):
			authResults = append(authResults, h.Value)
		case strings.EqualFold(h.Name, headerReceivedSPF):
			receivedSPF = append(receivedSPF, h.Value)
		case strings.EqualFold(h.Name, headerDKIMSig):
			hasSignature = true
		}
	}

	ar := strings.Join(authResults, "\n")
	spf := strings.Join(receivedSPF, "\n")
	combined := strings.ToLower(strings.Join(append(append([]string{}, authResults...), receivedSPF...), "\n"))
	lowerAR := strings.ToLower(ar)

	result := email.AuthenticationResult{
		SPFStatus:   classifySPF(combined, strings.ToLower(spf)),
		DKIMStatus:  classifyDKIM(lowerAR, hasSignature),
		DMARCStatus: classifyDMARC(lowerAR),
	}
	if spf != "" {
		result.SPF = spf
	} else if strings.Contains(lowerAR, "spf=") {
		result.SPF = ar
	}
	if strings.Contains(lowerAR, "dkim=") {
		result.DKIM = ar
	}
	if strings.Contains(lowerAR, "dmarc=") {
		result.DMARC = ar
	}
	return result
}

// classifySPF prefers explicit spf= tokens and falls back to the
// free-form wording of Received-SPF.
func classifySPF(combined, receivedSPF string) email.AuthStatus {
	switch {
	case strings.Contains(combined, "spf=pass"):
		return email.AuthPass
	case strings.Contains(combined, "spf=fail"):
		return email.AuthFail
	case strings.Contains(combined, "spf=softfail"):
		return email.AuthSoftFail
	case strings.Contains(combined, "spf=neutral"):
		return email.AuthNeutral
	}

	switch {
	case receivedSPF == "":
		return email.AuthUnknown
	case strings.Contains(receivedSPF, "pass") && !strings.Contains(receivedSPF, "fail"):
		return email.AuthPass
	case strings.Contains(receivedSPF, "softfail"):
		return email.AuthSoftFail
	case strings.Contains(receivedSPF, "fail"):
		return email.AuthFail
	case strings.Contains(receivedSPF, "neutral"):
		return email.AuthNeutral
	}
	return email.AuthUnknown
}

func classifyDKIM(authResults string, hasSignature bool) email.AuthStatus {
	switch {
	case strings.Contains(authResults, "dkim=pass"):
		return email.AuthPass
	case strings.Contains(authResults, "dkim=fail"):
		return email.AuthFail
	case hasSignature:
		return email.AuthPresent
	}
	return email.AuthUnknown
}

func classifyDMARC(authResults string) email.AuthStatus {
	switch {
	case strings.Contains(authResults, "dmarc=pass"):
		return email.AuthPass
	case strings.Contains(authResults, "dmarc=fail"):
		return email.AuthFail
	case strings.Contains(authResults, "dmarc=none"):
		return email.AuthNone
	}
	return email.AuthUnknown
}
