// Package normalize turns decoded client payloads into canonical board
// entries. Legacy key aliases are resolved here and nowhere else.
//
// Malformed entries are dropped, never reported: one bad token must not
// block a collaborative save. Only top-level shape errors are returned.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// lookup returns the first present, non-nil value among keys.
func lookup(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func list(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// text returns a trimmed string; numbers are formatted so numeric ids survive.
func text(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

func textOf(raw map[string]any, keys ...string) string {
	v, ok := lookup(raw, keys...)
	if !ok {
		return ""
	}
	s, _ := text(v)
	return s
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func numberOf(raw map[string]any, def float64, keys ...string) float64 {
	v, ok := lookup(raw, keys...)
	if !ok {
		return def
	}
	f, ok := number(v)
	if !ok {
		return def
	}
	return f
}

func clampFloat(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

// intOf reads an integer field, rounding, defaulting and clamping it.
func intOf(raw map[string]any, def, lo, hi int, keys ...string) int {
	f := numberOf(raw, float64(def), keys...)
	return clampInt(int(math.Round(f)), lo, hi)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNegative(raw map[string]any, keys ...string) int64 {
	f := numberOf(raw, 0, keys...)
	if f < 0 {
		return 0
	}
	return int64(math.Round(f))
}

func boolOf(raw map[string]any, def bool, keys ...string) bool {
	v, ok := lookup(raw, keys...)
	if !ok {
		return def
	}
	b, ok := Truthy(v)
	if !ok {
		return def
	}
	return b
}

// fold lower-cases a token for case-insensitive comparison.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// nullableText reads an optional string field where an explicit null or an
// empty string clears the value.
func nullableText(v any) *string {
	s, ok := text(v)
	if !ok {
		return nil
	}
	return &s
}
