package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Masked replaces the whole value of a sensitive key.
const Masked = "***MASKED***"

var sensitiveKeys = []string{"password", "secret", "token", "key", "email"}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Mask returns a copy of v with every sensitive key's value replaced,
// descending into nested objects and arrays. v is not modified.
func Mask(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitive(k) {
				out[k] = Masked
				continue
			}
			out[k] = Mask(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Mask(val)
		}
		return out
	default:
		return v
	}
}

// MaskArgs masks a tool argument object and encodes it for storage.
func MaskArgs(args map[string]any) json.RawMessage {
	if args == nil {
		return json.RawMessage("{}")
	}
	b, err := json.Marshal(Mask(args))
	if err != nil {
		return json.RawMessage(`{"error":"unencodable arguments"}`)
	}
	return b
}

// Fingerprint is the hex SHA-256 of the canonical JSON of the raw arguments.
// Map keys are sorted by encoding/json, so equal arguments hash equally.
func Fingerprint(args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
