package core

import (
	"encoding/json"
	"testing"
)

func TestFingerprint_OrderIndependent(t *testing.T) {
	first, err := Fingerprint(map[string]any{
		"a": 1,
		"b": map[string]any{"y": []any{1, 2}, "x": "v"},
	})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	second, err := Fingerprint(map[string]any{
		"b": map[string]any{"x": "v", "y": []any{1, 2}},
		"a": 1,
	})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical fingerprints, got %s and %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256, got %q", first)
	}
}

func TestFingerprint_DetectsContentChange(t *testing.T) {
	first, _ := Fingerprint(map[string]any{"a": 1})
	second, _ := Fingerprint(map[string]any{"a": 2})
	if first == second {
		t.Fatalf("expected different fingerprints for different payloads")
	}
	arrayA, _ := Fingerprint(map[string]any{"list": []any{1, 2}})
	arrayB, _ := Fingerprint(map[string]any{"list": []any{2, 1}})
	if arrayA == arrayB {
		t.Fatalf("array order is significant")
	}
}

func TestFingerprint_NumericFormsMatchDecodedJSON(t *testing.T) {
	typed, _ := Fingerprint(map[string]any{"n": 1})
	decoded, _ := Fingerprint(map[string]any{"n": float64(1)})
	if typed != decoded {
		t.Fatalf("expected int and float64 forms of 1 to match")
	}
}

func TestFingerprint_KeepsLargeIntegersExact(t *testing.T) {
	above, err := Fingerprint(map[string]any{"id": json.Number("9007199254740993")})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	at, err := Fingerprint(map[string]any{"id": json.Number("9007199254740992")})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if above == at {
		t.Fatalf("2^53+1 and 2^53 must fingerprint differently")
	}
	typed, _ := Fingerprint(map[string]any{"id": int64(9007199254740993)})
	if typed != above {
		t.Fatalf("expected int64 and decoded forms of the same integer to match")
	}
}

func TestDecodePayload_UsesNumbers(t *testing.T) {
	payload, err := DecodePayload([]byte(`{"id":9007199254740993,"nested":{"v":1.50}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["id"] != json.Number("9007199254740993") {
		t.Fatalf("expected exact number, got %#v", payload["id"])
	}
	nested, _ := payload["nested"].(map[string]any)
	if nested["v"] != json.Number("1.50") {
		t.Fatalf("expected literal 1.50, got %#v", nested["v"])
	}
	if _, err := DecodePayload([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatalf("expected trailing data to be rejected")
	}
}
