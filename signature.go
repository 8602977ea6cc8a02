// signature.go
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
)

const signatureHeader = "X-Hub-Signature-256"

// VerifySignature checks the HMAC-SHA256 of body against the signature
// header value. The returned string is a diagnostic for logging; it never
// contains the secret. Fails closed: missing header, missing secret or a
// malformed prefix all verify as false.
func VerifySignature(body []byte, header, secret string) (bool, string) {
	if secret == "" {
		return false, "no app secret configured"
	}
	if header == "" {
		return false, "missing signature header"
	}
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false, "unsupported signature prefix"
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return false, "signature mismatch"
	}
	return true, "ok"
}

// validateSignedRequest rejects any POST whose body does not carry a valid
// platform signature. GET passes through untouched for the verification
// handshake. No audit entry is written on rejection: the payload is
// unauthenticated, so no tenant scope exists yet.
func validateSignedRequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			LogError("Error reading request body: %v", err)
			http.Error(w, "Error reading body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		ok, diag := VerifySignature(body, r.Header.Get(signatureHeader), config.AppSecret)
		if !ok {
			LogWarn("Rejected webhook from %s: %s", r.RemoteAddr, diag)
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		LogDebug("Signature verified for %d byte payload", len(body))
		next(w, r)
	}
}
