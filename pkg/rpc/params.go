package rpc

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Params is the decoded params value of a request. Numbers are kept as
// json.Number so integer ids survive unchanged.
type Params struct {
	value any
}

// NewParams wraps an already decoded value.
func NewParams(value any) Params {
	return Params{value: value}
}

// Raw returns the decoded value.
func (p Params) Raw() any {
	return p.value
}

func (p Params) object() (map[string]any, bool) {
	obj, ok := p.value.(map[string]any)
	return obj, ok
}

// ParamError reports a missing or badly typed parameter.
type ParamError struct {
	Message string
}

func (e *ParamError) Error() string {
	return e.Message
}

func missing(key string) error {
	return &ParamError{Message: fmt.Sprintf("missing `%s`", key)}
}

// String returns a required string parameter.
func (p Params) String(key string) (string, error) {
	obj, ok := p.object()
	if !ok {
		return "", missing(key)
	}
	s, ok := obj[key].(string)
	if !ok {
		return "", missing(key)
	}
	return s, nil
}

// FirstString returns the first of keys that holds a string.
func (p Params) FirstString(keys ...string) (string, error) {
	for _, key := range keys {
		if s, err := p.String(key); err == nil {
			return s, nil
		}
	}
	return "", missing(keys[0])
}

// OptionalString returns a string parameter, or nil when absent or not a
// string.
func (p Params) OptionalString(key string) *string {
	s, err := p.String(key)
	if err != nil {
		return nil
	}
	return &s
}

// StringOr returns a string parameter or fallback.
func (p Params) StringOr(key, fallback string) string {
	if s := p.OptionalString(key); s != nil {
		return *s
	}
	return fallback
}

// OptionalUint32 returns a non-negative integer parameter that fits in 32
// bits, or nil.
func (p Params) OptionalUint32(key string) *int {
	n, ok := p.uint(key)
	if !ok || n > math.MaxUint32 {
		return nil
	}
	v := int(n)
	return &v
}

// Uint64 returns a required non-negative integer parameter.
func (p Params) Uint64(key string) (uint64, error) {
	n, ok := p.uint(key)
	if !ok {
		return 0, &ParamError{Message: "missing " + key}
	}
	return n, nil
}

func (p Params) uint(key string) (uint64, bool) {
	obj, ok := p.object()
	if !ok {
		return 0, false
	}
	num, ok := obj[key].(json.Number)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(num.String(), 10, 64)
	return n, err == nil
}

// StringArray returns the string elements of an array parameter. Non-string
// elements are skipped; a missing key yields nil.
func (p Params) StringArray(key string) []string {
	obj, ok := p.object()
	if !ok {
		return nil
	}
	items, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Value returns a parameter of any type. A JSON null counts as absent.
func (p Params) Value(key string) (any, bool) {
	obj, ok := p.object()
	if !ok {
		return nil, false
	}
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Decode re-encodes a parameter into out.
func (p Params) Decode(key string, out any) error {
	v, ok := p.Value(key)
	if !ok {
		return missing(key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParamError{Message: fmt.Sprintf("invalid `%s`", key)}
	}
	return nil
}

// AuthToken extracts the token of an auth request, given either as a bare
// string or as {"token": "..."}.
func (p Params) AuthToken() string {
	switch v := p.value.(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["token"].(string)
		return s
	}
	return ""
}
