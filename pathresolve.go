package conf

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// resolveRelativePaths walks the raw document together with its provenance
// map and rewrites explicit relative-path strings into absolute paths,
// anchored at the directory of the file that defined each value. A path
// declared inside an included file therefore resolves relative to that
// file's location, not the includer's.
//
// The rewrite is best-effort: values that fail to absolutize keep their
// original string.
func resolveRelativePaths(doc yaml.MapSlice, prov map[string]string) yaml.MapSlice {
	resolved, _ := resolvePathNode(doc, "", prov).(yaml.MapSlice)

	return resolved
}

func resolvePathNode(value any, dotted string, prov map[string]string) any {
	switch typed := value.(type) {
	case yaml.MapSlice:
		resolved := make(yaml.MapSlice, 0, len(typed))

		for _, item := range typed {
			child := joinDotted(dotted, keyString(item.Key))
			resolved = append(resolved, yaml.MapItem{
				Key:   item.Key,
				Value: resolvePathNode(item.Value, child, prov),
			})
		}

		return resolved
	case []any:
		resolved := make([]any, len(typed))

		for i, element := range typed {
			resolved[i] = resolvePathNode(element, indexDotted(dotted, i), prov)
		}

		return resolved
	case string:
		return rewriteRelativePath(typed, dotted, prov)
	default:
		return value
	}
}

func rewriteRelativePath(value, dotted string, prov map[string]string) string {
	if !isExplicitRelativePath(value) {
		return value
	}

	source, tracked := prov[dotted]
	if !tracked {
		// No provenance entry: set programmatically or untracked, leave as-is.
		return value
	}

	absolute, err := filepath.Abs(filepath.Join(filepath.Dir(source), value))
	if err != nil {
		return value
	}

	return absolute
}

// isExplicitRelativePath reports whether a string opts into rewriting:
// it must start with "./" or "../", must not be URL-like, and must not
// already be absolute.
func isExplicitRelativePath(value string) bool {
	if !strings.HasPrefix(value, "./") && !strings.HasPrefix(value, "../") {
		return false
	}

	if strings.Contains(value, "://") {
		return false
	}

	return !filepath.IsAbs(value)
}

func joinDotted(dotted, key string) string {
	if dotted == "" {
		return key
	}

	return dotted + "." + key
}

func indexDotted(dotted string, index int) string {
	return dotted + "[" + strconv.Itoa(index) + "]"
}
