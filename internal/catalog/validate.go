package catalog

import (
	"fmt"
	"sort"
)

type ErrorCode string

const (
	UnknownArgument ErrorCode = "unknown_argument"
	MissingRequired ErrorCode = "missing_required"
	OutOfDomain     ErrorCode = "out_of_domain"
	OverLimit       ErrorCode = "over_limit"
	// Malformed means the payload was not an argument object at all.
	Malformed       ErrorCode = "malformed"
)

// ValidationError reports the first argument that failed validation.
type ValidationError struct {
	Code     ErrorCode
	Argument string
}

func (e *ValidationError) Error() string {
	if e.Argument == "" {
		return "arguments: " + string(e.Code)
	}
	return fmt.Sprintf("argument %q: %s", e.Argument, e.Code)
}

// LimitPolicy decides what happens to a result-limit argument above the
// plan ceiling.
type LimitPolicy string

const (
	PolicyClamp  LimitPolicy = "clamp"
	PolicyReject LimitPolicy = "reject"
)

// ParsePolicy maps the config value; anything but "reject" clamps.
func ParsePolicy(s string) LimitPolicy {
	if s == string(PolicyReject) {
		return PolicyReject
	}
	return PolicyClamp
}

// Args are validated, normalized arguments. Integers are int64, strings are
// trimmed and date ranges are map[string]any with "from"/"to" days.
type Args map[string]any

// Opt returns the argument or nil when absent, ready to bind as a nullable param.
func (a Args) Opt(name string) any {
	if v, ok := a[name]; ok {
		return v
	}
	return nil
}

func (a Args) Int(name string) int64 {
	n, _ := a[name].(int64)
	return n
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Validate checks raw against the tool's argument list and returns the
// normalized arguments. maxRows is the plan's row ceiling, nil for none.
// Validating its own output yields the same Args.
func Validate(t Tool, raw map[string]any, policy LimitPolicy, maxRows *uint64) (Args, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := t.arg(k); !ok {
			return nil, &ValidationError{Code: UnknownArgument, Argument: k}
		}
	}

	out := make(Args, len(t.Args))
	for _, a := range t.Args {
		v, present := raw[a.Name]
		if present && v == nil {
			present = false
		}

		if r, ok := a.Domain.(IntRange); ok && r.ResultLimit {
			n, err := resultLimit(a.Name, r, v, present, policy, maxRows)
			if err != nil {
				return nil, err
			}
			out[a.Name] = n
			continue
		}

		if !present {
			if a.Required {
				return nil, &ValidationError{Code: MissingRequired, Argument: a.Name}
			}
			if d, ok := defaultOf(a.Domain); ok {
				out[a.Name] = d
			}
			continue
		}

		n, ok := a.Domain.normalize(v)
		if !ok {
			return nil, &ValidationError{Code: OutOfDomain, Argument: a.Name}
		}
		out[a.Name] = n
	}

	if len(t.OneOf) > 0 {
		found := false
		for _, name := range t.OneOf {
			if _, ok := out[name]; ok {
				found = true
				break
			}
		}
		if !found {
			return nil, &ValidationError{Code: MissingRequired, Argument: t.OneOf[0]}
		}
	}
	return out, nil
}

// resultLimit never returns a value above min(domain max, plan ceiling).
// Defaults are always clamped; only caller-supplied values can be rejected.
func resultLimit(name string, r IntRange, v any, present bool, policy LimitPolicy, maxRows *uint64) (int64, error) {
	ceiling := r.Max
	if maxRows != nil && *maxRows < uint64(ceiling) {
		ceiling = int64(*maxRows)
	}
	if ceiling < r.Min {
		ceiling = r.Min
	}

	var n int64
	if !present {
		n = r.Max
		if r.Default != nil {
			n = *r.Default
		}
		return clamp(n, r.Min, ceiling), nil
	}

	n, ok := toInt64(v)
	if !ok {
		return 0, &ValidationError{Code: OutOfDomain, Argument: name}
	}
	if policy == PolicyReject {
		if n < r.Min || n > r.Max {
			return 0, &ValidationError{Code: OutOfDomain, Argument: name}
		}
		if n > ceiling {
			return 0, &ValidationError{Code: OverLimit, Argument: name}
		}
		return n, nil
	}
	return clamp(n, r.Min, ceiling), nil
}

func clamp(n, lo, hi int64) int64 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func defaultOf(d Domain) (any, bool) {
	switch v := d.(type) {
	case Enum:
		if v.Default != "" {
			return v.Default, true
		}
	case IntRange:
		if v.Default != nil {
			return *v.Default, true
		}
	}
	return nil, false
}
