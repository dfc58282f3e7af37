package catalog

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/jmehdipour/intent-gateway/internal/model"
)

// Domain is the closed set of values an argument may take.
type Domain interface {
	normalize(v any) (any, bool)
	schema() map[string]any
}

// Enum accepts one of a fixed list of strings.
type Enum struct {
	Values  []string
	Default string
}

func (d Enum) normalize(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	for _, allowed := range d.Values {
		if s == allowed {
			return s, true
		}
	}
	return nil, false
}

func (d Enum) schema() map[string]any {
	s := map[string]any{"type": "string", "enum": d.Values}
	if d.Default != "" {
		s["default"] = d.Default
	}
	return s
}

// IntRange accepts integers in [Min, Max]. ResultLimit marks the argument
// that bounds how many rows a call returns; it is capped by the plan.
type IntRange struct {
	Min, Max    int64
	Default     *int64
	ResultLimit bool
}

func (d IntRange) normalize(v any) (any, bool) {
	n, ok := toInt64(v)
	if !ok || n < d.Min || n > d.Max {
		return nil, false
	}
	return n, true
}

func (d IntRange) schema() map[string]any {
	s := map[string]any{"type": "integer", "minimum": d.Min, "maximum": d.Max}
	if d.Default != nil {
		s["default"] = *d.Default
	}
	return s
}

// Text accepts a trimmed, non-empty string of at most MaxLen runes.
type Text struct {
	MaxLen int
}

func (d Text) normalize(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" || len([]rune(s)) > d.MaxLen {
		return nil, false
	}
	return s, true
}

func (d Text) schema() map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "maxLength": d.MaxLen}
}

// DateRange accepts {"from": "YYYY-MM-DD", "to": "YYYY-MM-DD"}, either side
// optional, from not after to.
type DateRange struct{}

func (DateRange) normalize(v any) (any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]any, 2)
	for k, raw := range obj {
		if k != "from" && k != "to" {
			return nil, false
		}
		if raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		d, err := model.ParseDay(strings.TrimSpace(s))
		if err != nil {
			return nil, false
		}
		out[k] = model.DayBucket(d)
	}
	from, hasFrom := out["from"].(string)
	to, hasTo := out["to"].(string)
	if hasFrom && hasTo && from > to {
		return nil, false
	}
	return out, true
}

func (DateRange) schema() map[string]any {
	day := map[string]any{"type": "string", "format": "date"}
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"from": day, "to": day},
		"additionalProperties": false,
	}
}

// toInt64 accepts the numeric shapes JSON decoders produce. Fractions are rejected.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func def(n int64) *int64 { return &n }
