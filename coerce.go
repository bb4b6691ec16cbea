package conf

import (
	"strconv"
	"strings"
)

// Coerce converts a raw string, typically an environment variable value,
// into a typed scalar or list. It never fails; anything that does not match
// a known shape stays a string.
//
// Rules, in order:
//   - "null", "none", "" (case-insensitive) -> nil
//   - "true" / "false" (case-insensitive) -> bool
//   - contains "," -> split, trim, coerce each part, return []any.
//     There is no escape for a literal comma and no nested-list support.
//   - integer without "." -> int64
//   - contains "." and parses -> float64
//   - otherwise -> the original string
func Coerce(raw string) any {
	switch strings.ToLower(raw) {
	case "null", "none", "":
		return nil
	case "true":
		return true
	case "false":
		return false
	}

	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		list := make([]any, 0, len(parts))

		for _, part := range parts {
			list = append(list, Coerce(strings.TrimSpace(part)))
		}

		return list
	}

	if strings.Contains(raw, ".") {
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			return f
		}

		return raw
	}

	i, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		return i
	}

	return raw
}
