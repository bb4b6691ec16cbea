package conf

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// envOverride is one environment variable mapped onto a configuration path.
type envOverride struct {
	segments []string
	value    any
}

// applyEnvOverrides deep-merges prefix-matched variables from the environ
// snapshot into the raw document. Each matching name is stripped of the
// prefix, lowercased, and split on "_" to form path segments; the value is
// coerced (see Coerce). Overrides always win: an intermediate segment that
// exists but is not a mapping is overwritten with a fresh mapping.
//
// A key that itself contains an underscore cannot be distinguished from a
// path separator; such keys are not addressable from the environment.
func applyEnvOverrides(doc yaml.MapSlice, prefix string, environ []string) yaml.MapSlice {
	overrides := collectOverrides(prefix, environ)

	for _, override := range overrides {
		doc = deepSet(doc, override.segments, override.value)
	}

	if len(overrides) > 0 {
		slog.Info("environment overrides applied", slog.String("prefix", prefix), slog.Int("count", len(overrides)))
	}

	return doc
}

// collectOverrides returns prefix-matched overrides sorted by variable name.
// Enumeration order of the environment is unspecified; sorting keeps the
// (abnormal) case of two names deriving the same path deterministic.
func collectOverrides(prefix string, environ []string) []envOverride {
	var names []string

	values := make(map[string]string)

	for _, entry := range environ {
		name, value, found := strings.Cut(entry, "=")
		if !found || !strings.HasPrefix(name, prefix) {
			continue
		}

		if _, seen := values[name]; !seen {
			names = append(names, name)
		}

		values[name] = value
	}

	sort.Strings(names)

	overrides := make([]envOverride, 0, len(names))

	for _, name := range names {
		derived := strings.ToLower(strings.TrimPrefix(name, prefix))

		overrides = append(overrides, envOverride{
			segments: strings.Split(derived, "_"),
			value:    Coerce(values[name]),
		})
	}

	return overrides
}

// deepSet stores value at the segment path inside the ordered document,
// creating intermediate mappings as needed. New keys are appended, keeping
// the file-defined order of everything else intact.
func deepSet(doc yaml.MapSlice, segments []string, value any) yaml.MapSlice {
	key := segments[0]

	for i, item := range doc {
		if keyString(item.Key) != key {
			continue
		}

		if len(segments) == 1 {
			doc[i].Value = value

			return doc
		}

		child, isMapping := item.Value.(yaml.MapSlice)
		if !isMapping {
			child = nil
		}

		doc[i].Value = deepSet(child, segments[1:], value)

		return doc
	}

	if len(segments) == 1 {
		return append(doc, yaml.MapItem{Key: key, Value: value})
	}

	return append(doc, yaml.MapItem{
		Key:   key,
		Value: deepSet(nil, segments[1:], value),
	})
}
