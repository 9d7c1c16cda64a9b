// Package blob encodes arbitrary JSON-compatible values as URL-safe text
// tokens. Tokens use the unpadded URL-safe base64 alphabet ([A-Za-z0-9_-])
// so they can be embedded unescaped in a query string component.
package blob

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeError reports a malformed token. Stage identifies which layer of the
// token failed so a bad transport copy (base64) can be told apart from a
// corrupted payload (json).
type DecodeError struct {
	Stage string // "base64" or "json"
	Err   error
}

func (e *DecodeError) Error() string {
	switch e.Stage {
	case "base64":
		return fmt.Sprintf("blob: invalid base64 token: %v", e.Err)
	case "json":
		return fmt.Sprintf("blob: token payload is not valid JSON: %v", e.Err)
	}
	return fmt.Sprintf("blob: decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes v to canonical JSON and wraps the UTF-8 bytes in
// unpadded URL-safe base64. Map keys are emitted in sorted order, so equal
// values always produce identical tokens.
func Encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("blob: value is not JSON-serializable: %w", err)
	}
	// json.Encoder appends a newline; strip it so the token is stable.
	raw := bytes.TrimRight(buf.Bytes(), "\n")
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode. Tokens produced with padding or with the standard
// base64 alphabet are accepted as well. JSON numbers come back as float64.
func Decode(token string) (any, error) {
	if token == "" {
		return nil, &DecodeError{Stage: "base64", Err: fmt.Errorf("empty token")}
	}
	normalized := strings.TrimRight(token, "=")
	normalized = strings.NewReplacer("+", "-", "/", "_").Replace(normalized)
	raw, err := base64.RawURLEncoding.DecodeString(normalized)
	if err != nil {
		return nil, &DecodeError{Stage: "base64", Err: err}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &DecodeError{Stage: "json", Err: err}
	}
	return v, nil
}
