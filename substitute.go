package conf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// placeholderPattern matches ${a.b.c} tokens. The identifier class is
// deliberately restricted to [a-zA-Z0-9_.] so hostile keys cannot smuggle
// patterns with pathological backtracking cost into the scan.
var placeholderPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9_.]+)\}`)

// substituteDocument replaces every ${path} placeholder inside string leaves
// of the committed tree's plain form with the stringified value found at
// that dotted path. Lookups read the committed tree, so a placeholder
// referencing an environment-overridden value observes the override.
//
// Substitution is a single pass: a referenced value that itself contains a
// placeholder is inserted as its literal, unresolved text.
func substituteDocument(tree *Tree) (yaml.MapSlice, error) {
	substituted, err := substituteNode(tree.ToPlain(), tree)
	if err != nil {
		return nil, err
	}

	doc, _ := substituted.(yaml.MapSlice)

	return doc, nil
}

func substituteNode(value any, tree *Tree) (any, error) {
	switch typed := value.(type) {
	case yaml.MapSlice:
		result := make(yaml.MapSlice, 0, len(typed))

		for _, item := range typed {
			replaced, err := substituteNode(item.Value, tree)
			if err != nil {
				return nil, err
			}

			result = append(result, yaml.MapItem{Key: item.Key, Value: replaced})
		}

		return result, nil
	case []any:
		result := make([]any, len(typed))

		for i, element := range typed {
			replaced, err := substituteNode(element, tree)
			if err != nil {
				return nil, err
			}

			result[i] = replaced
		}

		return result, nil
	case string:
		return substituteString(typed, tree)
	default:
		return value, nil
	}
}

func substituteString(value string, tree *Tree) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	var builder strings.Builder

	last := 0

	for _, match := range matches {
		identifier := value[match[2]:match[3]]

		resolved, err := tree.Require(identifier)
		if err != nil {
			return "", err
		}

		builder.WriteString(value[last:match[0]])
		builder.WriteString(stringify(resolved))

		last = match[1]
	}

	builder.WriteString(value[last:])

	return builder.String(), nil
}

// stringify renders a resolved value into placeholder replacement text.
// Composite values render in YAML flow style.
func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case uint64:
		return strconv.FormatUint(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	case *Tree, []any:
		data, err := yaml.MarshalWithOptions(unwrapValue(typed), yaml.Flow(true))
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}

		return strings.TrimSpace(string(data))
	default:
		return fmt.Sprintf("%v", typed)
	}
}
