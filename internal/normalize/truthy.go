package normalize

import "strings"

// Truthy interprets booleans, the integers 0 and 1, and the strings
// true/1/yes/on and false/0/no/off. ok is false for anything else.
func Truthy(v any) (value, ok bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		switch t {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	case int:
		switch t {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	return false, false
}

// Hidden resolves the visibility flag of a raw placement. hidden, isHidden
// and flags.hidden are consulted in that order; the first recognized value
// wins, so an explicit hidden:false overrides a stale isHidden:true.
func Hidden(raw map[string]any) bool {
	for _, k := range []string{"hidden", "isHidden"} {
		if v, ok := raw[k]; ok {
			if b, ok := Truthy(v); ok {
				return b
			}
		}
	}
	if flags, ok := object(raw["flags"]); ok {
		if b, ok := Truthy(flags["hidden"]); ok {
			return b
		}
	}
	return false
}
