// Package signer computes the authentication signatures attached to content distributions.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const methodPrefix = "sha256="

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
// The payload is signed exactly as given.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the Sign output for secret and payload.
// An optional "sha256=" method prefix is accepted.
func Verify(secret string, payload []byte, signature string) bool {
	if len(signature) > len(methodPrefix) && signature[:len(methodPrefix)] == methodPrefix {
		signature = signature[len(methodPrefix):]
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
