package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint hashes the canonical JSON form of payload. encoding/json writes
// map keys in sorted order at every depth, so key order never changes the hash.
func Fingerprint(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON round-trips through a generic value so typed Go values and
// decoded request bodies serialize alike. Numbers are kept as json.Number so
// integers beyond 2^53 keep every digit.
func canonicalJSON(payload map[string]any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode payload: %w", err)
	}
	generic, err := DecodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("core: normalize payload: %w", err)
	}
	return json.Marshal(generic)
}

// DecodePayload decodes a JSON object keeping numbers as json.Number.
func DecodePayload(raw []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("core: trailing data after payload object")
	}
	return payload, nil
}
