package dispatcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// ErrMalformedArguments is set on Call.ArgumentsErr when a transport could
// not turn the payload into an argument object.
var ErrMalformedArguments = errors.New("arguments must be a JSON object")

// DecodeArguments parses a transport payload into call arguments. An empty
// or null payload means no arguments. Numbers stay json.Number so large
// integers are not rounded.
func DecodeArguments(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, errors.Join(ErrMalformedArguments, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrMalformedArguments
	}
	return args, nil
}
