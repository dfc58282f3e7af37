package dispatcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeArguments(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", " null\n"} {
		args, err := DecodeArguments([]byte(raw))
		require.NoError(t, err, raw)
		assert.NotNil(t, args)
		assert.Empty(t, args)
	}

	args, err := DecodeArguments([]byte(`{"film_id": 12345678901234567, "title": "alien"}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567"), args["film_id"])
	assert.Equal(t, "alien", args["title"])
}

func TestDecodeArgumentsRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"[1,2]", "{", `"x"`, "42", `{"a":1} {"b":2}`} {
		_, err := DecodeArguments([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedArguments, raw)
	}
}
