package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMask(t *testing.T) {
	in := map[string]any{
		"title":    "ACADEMY",
		"email":    "mary.smith@example.com",
		"Password": "hunter2",
		"api_key":  "k",
		"nested": map[string]any{
			"access_token": "t",
			"store_id":     float64(1),
			"list":         []any{map[string]any{"client_secret": "s", "ok": true}, "plain"},
		},
		"credentials_secret": map[string]any{"user": "u"},
	}

	out := Mask(in).(map[string]any)
	assert.Equal(t, "ACADEMY", out["title"])
	assert.Equal(t, Masked, out["email"])
	assert.Equal(t, Masked, out["Password"])
	assert.Equal(t, Masked, out["api_key"])
	assert.Equal(t, Masked, out["credentials_secret"], "sensitive objects are replaced whole")

	nested := out["nested"].(map[string]any)
	assert.Equal(t, Masked, nested["access_token"])
	assert.Equal(t, float64(1), nested["store_id"])
	list := nested["list"].([]any)
	assert.Equal(t, Masked, list[0].(map[string]any)["client_secret"])
	assert.Equal(t, true, list[0].(map[string]any)["ok"])
	assert.Equal(t, "plain", list[1])

	// input untouched
	assert.Equal(t, "mary.smith@example.com", in["email"])
}

func TestMaskIsIdempotent(t *testing.T) {
	in := map[string]any{"email": "a@b.c", "x": []any{map[string]any{"token": 1}}}
	once := Mask(in)
	assert.Equal(t, once, Mask(once))
}

func TestMaskArgs(t *testing.T) {
	raw := MaskArgs(map[string]any{"email": "a@b.c", "customer_id": 1})
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, Masked, got["email"])
	assert.NotContains(t, string(raw), "a@b.c")

	assert.JSONEq(t, `{}`, string(MaskArgs(nil)))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(map[string]any{"title": "x", "limit": 5})
	b := Fingerprint(map[string]any{"limit": 5, "title": "x"})
	c := Fingerprint(map[string]any{"limit": 6, "title": "x"})

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, Fingerprint(nil), Fingerprint(map[string]any{}))
}
