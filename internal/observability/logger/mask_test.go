package logger

import (
	"net/http"
	"testing"
)

func TestMaskAuthorization(t *testing.T) {
	got := MaskAuthorization("Bearer abcdef1234")
	want := "Bearer ****1234"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskHeadersMasksGatewaySignatures(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", "f00dfeedcafe1234")
	headers.Set("Content-Type", "application/json")

	masked := MaskHeaders(headers)
	if masked["X-Razorpay-Signature"] != "****1234" {
		t.Fatalf("expected masked signature, got %q", masked["X-Razorpay-Signature"])
	}
	if masked["Content-Type"] != "application/json" {
		t.Fatalf("expected content type untouched, got %q", masked["Content-Type"])
	}
}

func TestMaskJSON(t *testing.T) {
	input := map[string]any{
		"webhook_secret": "whsec_12345678",
		"reason":         "damaged item",
		"nested": map[string]any{
			"idempotency_key": "key_12345678",
		},
	}
	masked := MaskJSON(input)
	if masked["webhook_secret"] != "****5678" {
		t.Fatalf("expected masked secret, got %v", masked["webhook_secret"])
	}
	if masked["reason"] != "damaged item" {
		t.Fatalf("expected reason untouched, got %v", masked["reason"])
	}
	nested, ok := masked["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map")
	}
	if nested["idempotency_key"] != "****5678" {
		t.Fatalf("expected masked idempotency key, got %v", nested["idempotency_key"])
	}
}
