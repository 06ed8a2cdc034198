package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifySignature checks an HMAC-SHA256 signature over the request body.
// The header value may carry a "sha256=" prefix; comparison is
// constant-time.
func VerifySignature(body []byte, signature, secret string) error {
	if signature == "" {
		return fmt.Errorf("missing signature")
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	expected, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("malformed signature: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := mac.Sum(nil)

	if !hmac.Equal(computed, expected) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 signature for a body. Used by tests
// and by the CLI when replaying notifications.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
