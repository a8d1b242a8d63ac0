package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reference(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSign(t *testing.T) {
	payload := []byte(`{"version":"https://jsonfeed.org/version/1","title":"My Example Feed"}`)

	sig := Sign("123456789101112", payload)
	assert.Equal(t, reference("123456789101112", payload), sig)
	assert.Len(t, sig, 64)
	assert.Regexp(t, "^[0-9a-f]+$", sig)
}

func TestSign_Deterministic(t *testing.T) {
	payload := []byte("<feed/>")
	assert.Equal(t, Sign("secret", payload), Sign("secret", payload))
}

func TestSign_DistinctSecrets(t *testing.T) {
	payload := []byte("<feed/>")
	assert.NotEqual(t, Sign("secret-a", payload), Sign("secret-b", payload))
}

func TestSign_ExactBytes(t *testing.T) {
	// Whitespace is significant
	assert.NotEqual(t, Sign("secret", []byte(`{"a":1}`)), Sign("secret", []byte(`{"a": 1}`)))
}

func TestVerify(t *testing.T) {
	payload := []byte("payload")
	sig := Sign("secret", payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		want      bool
	}{
		{"match", "secret", payload, sig, true},
		{"method prefix", "secret", payload, "sha256=" + sig, true},
		{"wrong secret", "differentSecret", payload, sig, false},
		{"tampered payload", "secret", []byte("payload!"), sig, false},
		{"not hex", "secret", payload, "zz", false},
		{"empty", "secret", payload, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}
