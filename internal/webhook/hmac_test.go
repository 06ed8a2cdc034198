package webhook

import (
	"strings"
	"testing"
)

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"payload":{}}`)
	secret := "secret"

	if err := VerifySignature(body, Sign(body, secret), secret); err != nil {
		t.Errorf("VerifySignature() = %v, want nil", err)
	}
}

func TestVerifySignature_NoPrefix(t *testing.T) {
	body := []byte(`{"payload":{}}`)
	secret := "secret"
	raw := strings.TrimPrefix(Sign(body, secret), "sha256=")

	if err := VerifySignature(body, raw, secret); err != nil {
		t.Errorf("VerifySignature() without prefix = %v, want nil", err)
	}
}

func TestVerifySignature_Rejections(t *testing.T) {
	body := []byte(`{"payload":{}}`)

	tests := []struct {
		name      string
		signature string
		secret    string
	}{
		{"empty signature", "", "secret"},
		{"not hex", "sha256=zzzz", "secret"},
		{"wrong digest", "sha256=" + strings.Repeat("00", 32), "secret"},
		{"wrong secret", Sign(body, "other"), "secret"},
		{"tampered body", Sign([]byte(`{"payload":{"x":1}}`), "secret"), "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifySignature(body, tt.signature, tt.secret); err == nil {
				t.Error("VerifySignature() = nil, want error")
			}
		})
	}
}
