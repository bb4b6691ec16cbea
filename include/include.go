package include

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

// ErrCircularInclude is returned when a file includes itself, directly or transitively.
var ErrCircularInclude = errors.New("circular include")

// ErrOutsideRoot is returned when an include target escapes the project root.
var ErrOutsideRoot = errors.New("include outside project root")

// ErrSectionNotFound is returned when a "#section.path" suffix does not exist in the included document.
var ErrSectionNotFound = errors.New("include section not found")

// ErrIncludeTarget is returned when an !include tag carries a mapping or
// sequence instead of a scalar path.
var ErrIncludeTarget = errors.New("include target must be a string")

// ErrRootNotMapping is returned when the entry document is not a mapping.
var ErrRootNotMapping = errors.New("root document must be a mapping")

// includeTag is the YAML tag that triggers expansion.
const includeTag = "!include"

// Strategy controls how a sequence of includes combines.
type Strategy string

const (
	// StrategyReplace substitutes each expanded subtree at its tag position.
	StrategyReplace Strategy = "replace"
	// StrategyMerge additionally folds a sequence consisting entirely of
	// includes that all expand to mappings into one deep-merged mapping,
	// earlier entries forming the base.
	StrategyMerge Strategy = "merge"
)

// Valid reports whether the strategy is one of the known values.
func (s Strategy) Valid() bool {
	return s == StrategyReplace || s == StrategyMerge
}

// Expander resolves !include tags in YAML documents.
//
// An include target is a relative or absolute path, optionally suffixed with
// "#section.path" to select a subtree of the included file. Relative targets
// resolve against the directory of the file containing the tag. Every
// resolved target must stay under the project root handed to Expand.
type Expander struct{}

// NewExpander creates an include Expander.
func NewExpander() *Expander {
	return &Expander{}
}

// Expand parses the file at path, recursively resolves every !include tag,
// and returns the expanded document together with a provenance map from
// dotted value paths (sequence indices rendered "name[idx]") to the absolute
// path of the file that defined each value.
//
// A strategy other than StrategyMerge behaves as StrategyReplace.
func (e *Expander) Expand(path string, strategy Strategy, root string) (yaml.MapSlice, map[string]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving project root %q: %w", root, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving %q: %w", path, err)
	}

	exp := &expansion{
		strategy: strategy,
		root:     absRoot,
		stack:    nil,
	}

	value, prov, err := exp.expandFile(absPath)
	if err != nil {
		return nil, nil, err
	}

	doc, isMapping := value.(yaml.MapSlice)
	if !isMapping {
		return nil, nil, fmt.Errorf("%w: %s", ErrRootNotMapping, absPath)
	}

	delete(prov, "")

	return doc, prov, nil
}

// expansion carries per-Expand state: the include stack for cycle detection
// and the boundary every target is checked against.
type expansion struct {
	strategy Strategy
	root     string
	stack    []string
}

// expandFile reads, parses, and converts one file. Provenance keys in the
// returned map are relative to the file's document root; the caller rebases
// them onto the include site.
func (e *expansion) expandFile(path string) (any, map[string]string, error) {
	if !within(e.root, path) {
		return nil, nil, fmt.Errorf("%w: %s escapes %s", ErrOutsideRoot, path, e.root)
	}

	for _, ancestor := range e.stack {
		if ancestor == path {
			return nil, nil, fmt.Errorf("%w: %s", ErrCircularInclude, path)
		}
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is boundary-checked above
	if err != nil {
		return nil, nil, fmt.Errorf("reading include %q: %w", path, err)
	}

	file, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %q: %w", path, err)
	}

	if len(file.Docs) == 0 || file.Docs[0].Body == nil {
		return yaml.MapSlice{}, map[string]string{}, nil
	}

	e.stack = append(e.stack, path)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	conv := &converter{
		exp:     e,
		source:  path,
		prov:    make(map[string]string),
		anchors: make(map[string]any),
	}

	value, err := conv.convert(file.Docs[0].Body, "")
	if err != nil {
		return nil, nil, err
	}

	return value, conv.prov, nil
}

// converter walks the AST of a single file, threading the dotted path
// accumulator and recording provenance at scalar leaves.
type converter struct {
	exp     *expansion
	source  string
	prov    map[string]string
	anchors map[string]any
}

func (c *converter) convert(node ast.Node, dotted string) (any, error) {
	switch n := node.(type) {
	case *ast.MappingNode:
		return c.convertMapping(n.Values, dotted)
	case *ast.MappingValueNode:
		// goccy represents a single-pair mapping as a bare MappingValueNode.
		return c.convertMapping([]*ast.MappingValueNode{n}, dotted)
	case *ast.SequenceNode:
		return c.convertSequence(n, dotted)
	case *ast.TagNode:
		if n.Start.Value == includeTag {
			value, local, err := c.expandInclude(n)
			if err != nil {
				return nil, err
			}

			c.mount(local, dotted)

			return value, nil
		}

		return c.convert(n.Value, dotted)
	case *ast.AnchorNode:
		value, err := c.convert(n.Value, dotted)
		if err != nil {
			return nil, err
		}

		c.anchors[nodeText(n.Name)] = value

		return value, nil
	case *ast.AliasNode:
		name := nodeText(n.Value)

		value, defined := c.anchors[name]
		if !defined {
			return nil, fmt.Errorf("undefined anchor %q in %s", name, c.source)
		}

		return value, nil
	case *ast.StringNode:
		c.record(dotted)

		return n.Value, nil
	case *ast.LiteralNode:
		c.record(dotted)

		return n.Value.Value, nil
	case *ast.IntegerNode:
		c.record(dotted)

		return normalizeInt(n.Value), nil
	case *ast.FloatNode:
		c.record(dotted)

		return n.Value, nil
	case *ast.BoolNode:
		c.record(dotted)

		return n.Value, nil
	case *ast.NullNode:
		c.record(dotted)

		return nil, nil
	default:
		var value any

		err := yaml.NodeToValue(node, &value, yaml.UseOrderedMap())
		if err != nil {
			return nil, fmt.Errorf("converting node in %s: %w", c.source, err)
		}

		return value, nil
	}
}

func (c *converter) convertMapping(pairs []*ast.MappingValueNode, dotted string) (any, error) {
	mapping := make(yaml.MapSlice, 0, len(pairs))

	for _, pair := range pairs {
		key := nodeText(pair.Key)

		value, err := c.convert(pair.Value, childPath(dotted, key))
		if err != nil {
			return nil, err
		}

		mapping = append(mapping, yaml.MapItem{Key: key, Value: value})
	}

	return mapping, nil
}

func (c *converter) convertSequence(n *ast.SequenceNode, dotted string) (any, error) {
	if c.exp.strategy == StrategyMerge && len(n.Values) > 0 && allIncludeTags(n.Values) {
		return c.mergeIncludes(n, dotted)
	}

	sequence := make([]any, len(n.Values))

	for i, element := range n.Values {
		value, err := c.convert(element, elementPath(dotted, i))
		if err != nil {
			return nil, err
		}

		sequence[i] = value
	}

	return sequence, nil
}

// mergeIncludes expands a sequence made entirely of !include entries. When
// every entry expands to a mapping, the results deep-merge into one mapping
// mounted at the sequence's own path; otherwise the entries stay a sequence.
func (c *converter) mergeIncludes(n *ast.SequenceNode, dotted string) (any, error) {
	values := make([]any, len(n.Values))
	locals := make([]map[string]string, len(n.Values))
	mappings := true

	for i, element := range n.Values {
		tag, _ := element.(*ast.TagNode)

		value, local, err := c.expandInclude(tag)
		if err != nil {
			return nil, err
		}

		values[i] = value
		locals[i] = local

		if _, isMapping := value.(yaml.MapSlice); !isMapping {
			mappings = false
		}
	}

	if !mappings {
		for i, local := range locals {
			c.mount(local, elementPath(dotted, i))
		}

		return values, nil
	}

	var merged yaml.MapSlice

	for i, value := range values {
		merged = deepMerge(merged, value.(yaml.MapSlice))
		c.mount(locals[i], dotted)
	}

	return merged, nil
}

// expandInclude resolves one !include tag. Provenance keys in the returned
// map are relative to the included value's root.
func (c *converter) expandInclude(n *ast.TagNode) (any, map[string]string, error) {
	target, isString := scalarText(n.Value)
	if !isString {
		return nil, nil, fmt.Errorf("%w: in %s", ErrIncludeTarget, c.source)
	}

	pathPart, section, _ := strings.Cut(target, "#")

	resolved := pathPart
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(c.source), resolved)
	}

	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving include %q in %s: %w", target, c.source, err)
	}

	value, local, err := c.exp.expandFile(abs)
	if err != nil {
		return nil, nil, err
	}

	if section != "" {
		value, local, err = selectSection(value, local, section, abs)
		if err != nil {
			return nil, nil, err
		}
	}

	return value, local, nil
}

// mount rebases relative provenance keys from an included document onto the
// include site's dotted path.
func (c *converter) mount(local map[string]string, dotted string) {
	for key, source := range local {
		c.prov[mountPath(dotted, key)] = source
	}
}

func (c *converter) record(dotted string) {
	c.prov[dotted] = c.source
}

// selectSection narrows an included document to the subtree at the dotted
// section path, rebasing provenance keys accordingly.
func selectSection(value any, prov map[string]string, section, source string) (any, map[string]string, error) {
	current := value

	for _, segment := range strings.Split(section, ".") {
		mapping, isMapping := current.(yaml.MapSlice)
		if !isMapping {
			return nil, nil, fmt.Errorf("%w: %q in %s", ErrSectionNotFound, section, source)
		}

		found := false

		for _, item := range mapping {
			if fmt.Sprintf("%v", item.Key) == segment {
				current = item.Value
				found = true

				break
			}
		}

		if !found {
			return nil, nil, fmt.Errorf("%w: %q in %s", ErrSectionNotFound, section, source)
		}
	}

	selected := make(map[string]string, len(prov))

	for key, src := range prov {
		switch {
		case key == section:
			selected[""] = src
		case strings.HasPrefix(key, section+"."):
			selected[strings.TrimPrefix(key, section+".")] = src
		case strings.HasPrefix(key, section+"["):
			selected[strings.TrimPrefix(key, section)] = src
		}
	}

	return current, selected, nil
}

func allIncludeTags(nodes []ast.Node) bool {
	for _, node := range nodes {
		tag, isTag := node.(*ast.TagNode)
		if !isTag || tag.Start.Value != includeTag {
			return false
		}
	}

	return true
}

// deepMerge merges overlay into base, keeping base's key order, recursing
// where both sides hold mappings and letting overlay win everywhere else.
func deepMerge(base, overlay yaml.MapSlice) yaml.MapSlice {
	merged := make(yaml.MapSlice, len(base))
	copy(merged, base)

	for _, item := range overlay {
		replaced := false

		for i, existing := range merged {
			if fmt.Sprintf("%v", existing.Key) != fmt.Sprintf("%v", item.Key) {
				continue
			}

			baseChild, baseIsMapping := existing.Value.(yaml.MapSlice)
			overlayChild, overlayIsMapping := item.Value.(yaml.MapSlice)

			if baseIsMapping && overlayIsMapping {
				merged[i].Value = deepMerge(baseChild, overlayChild)
			} else {
				merged[i].Value = item.Value
			}

			replaced = true

			break
		}

		if !replaced {
			merged = append(merged, item)
		}
	}

	return merged
}

// within reports whether path sits inside root (or is root itself).
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// normalizeInt folds the parser's uint64 representation of non-negative
// integers into int64, so a value's Go type does not depend on its sign.
// Only values above math.MaxInt64 stay uint64.
func normalizeInt(value any) any {
	if u, isUint := value.(uint64); isUint && u <= math.MaxInt64 {
		return int64(u)
	}

	return value
}

func scalarText(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, true
	case *ast.LiteralNode:
		return n.Value.Value, true
	default:
		return "", false
	}
}

func nodeText(node ast.Node) string {
	if s, isString := node.(*ast.StringNode); isString {
		return s.Value
	}

	return node.GetToken().Value
}

func childPath(dotted, key string) string {
	if dotted == "" {
		return key
	}

	return dotted + "." + key
}

func elementPath(dotted string, index int) string {
	return dotted + "[" + strconv.Itoa(index) + "]"
}

func mountPath(dotted, key string) string {
	switch {
	case key == "":
		return dotted
	case dotted == "":
		return key
	case strings.HasPrefix(key, "["):
		return dotted + key
	default:
		return dotted + "." + key
	}
}
