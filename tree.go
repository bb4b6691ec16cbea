package conf

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// reservedKeys are the structural accessor names that must stay addressable
// through dotted paths. Set rejects them as data keys.
var reservedKeys = map[string]struct{}{
	"get":     {},
	"set":     {},
	"has":     {},
	"require": {},
}

// Tree is an ordered mapping container for resolved configuration data.
//
// Nested mappings are wrapped into child *Tree nodes on insertion, and
// mapping elements of sequences are wrapped the same way, so the whole
// structure is uniformly traversable through dotted paths. Key order is
// insertion order, making traversal and re-serialization deterministic.
//
// A Tree is exclusively owned by the Loader that committed it. It is not
// safe for concurrent mutation; callers reading during a reload on another
// goroutine need their own locking.
type Tree struct {
	keys   []string
	values map[string]any
}

// NewTree creates an empty Tree.
func NewTree() *Tree {
	return &Tree{
		keys:   nil,
		values: make(map[string]any),
	}
}

// Set stores a value under a single key (not a dotted path). Mapping values
// are wrapped into nested Tree nodes; sequence values have their mapping
// elements wrapped; scalars are stored as-is.
// Returns ErrReservedKey if key collides with a structural accessor name.
func (t *Tree) Set(key string, value any) error {
	if _, reserved := reservedKeys[key]; reserved {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}

	wrapped, err := wrapValue(value)
	if err != nil {
		return err
	}

	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}

	t.values[key] = wrapped

	return nil
}

// Get traverses the dotted path and returns the value found, or nil the
// moment any segment is absent or the current node is not a mapping.
func (t *Tree) Get(path string) any {
	return t.GetOr(path, nil)
}

// GetOr is Get with an explicit fallback value.
func (t *Tree) GetOr(path string, fallback any) any {
	value, found := t.lookup(path)
	if !found {
		return fallback
	}

	return value
}

// Has reports whether the dotted path exists in the tree.
func (t *Tree) Has(path string) bool {
	_, found := t.lookup(path)

	return found
}

// Require returns the value at the dotted path, or an error wrapping
// ErrPathNotFound naming the path. Placeholder substitution uses it so that
// an undefined reference is a hard error rather than silently empty.
func (t *Tree) Require(path string) (any, error) {
	value, found := t.lookup(path)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}

	return value, nil
}

// Len returns the number of top-level keys.
func (t *Tree) Len() int {
	return len(t.keys)
}

// Keys returns the top-level keys in insertion order.
func (t *Tree) Keys() []string {
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)

	return keys
}

// ToPlain recursively strips Tree wrappers, returning an ordered mapping of
// only primitive containers, suitable for serialization or hashing.
func (t *Tree) ToPlain() yaml.MapSlice {
	plain := make(yaml.MapSlice, 0, len(t.keys))

	for _, key := range t.keys {
		plain = append(plain, yaml.MapItem{
			Key:   key,
			Value: unwrapValue(t.values[key]),
		})
	}

	return plain
}

// Decode unmarshals the subtree at the dotted path into target, which
// follows the usual yaml struct-tag conventions. An empty path decodes the
// entire tree.
func (t *Tree) Decode(path string, target any) error {
	var subtree any

	if path == "" {
		subtree = t.ToPlain()
	} else {
		value, err := t.Require(path)
		if err != nil {
			return err
		}

		subtree = unwrapValue(value)
	}

	data, err := yaml.Marshal(subtree)
	if err != nil {
		return fmt.Errorf("marshaling subtree %q: %w", path, err)
	}

	err = yaml.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("decoding subtree %q: %w", path, err)
	}

	return nil
}

func (t *Tree) lookup(path string) (any, bool) {
	segments := strings.Split(path, ".")
	current := t

	for i, segment := range segments {
		value, exists := current.values[segment]
		if !exists {
			return nil, false
		}

		if i == len(segments)-1 {
			return value, true
		}

		child, isTree := value.(*Tree)
		if !isTree {
			return nil, false
		}

		current = child
	}

	return nil, false
}

// replaceFrom clears the tree and repopulates it from an ordered document,
// keeping the Tree pointer itself stable so callers holding it observe the
// new data after a reload. The new contents are built fully before the swap;
// on error the previous contents stay in place.
func (t *Tree) replaceFrom(doc yaml.MapSlice) error {
	staged := NewTree()

	for _, item := range doc {
		err := staged.Set(keyString(item.Key), item.Value)
		if err != nil {
			return err
		}
	}

	t.keys = staged.keys
	t.values = staged.values

	return nil
}

func wrapValue(value any) (any, error) {
	switch typed := value.(type) {
	case yaml.MapSlice:
		child := NewTree()

		for _, item := range typed {
			err := child.Set(keyString(item.Key), item.Value)
			if err != nil {
				return nil, err
			}
		}

		return child, nil
	case map[string]any:
		child := NewTree()

		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			err := child.Set(key, typed[key])
			if err != nil {
				return nil, err
			}
		}

		return child, nil
	case []any:
		wrapped := make([]any, len(typed))

		for i, element := range typed {
			w, err := wrapValue(element)
			if err != nil {
				return nil, err
			}

			wrapped[i] = w
		}

		return wrapped, nil
	default:
		return value, nil
	}
}

func unwrapValue(value any) any {
	switch typed := value.(type) {
	case *Tree:
		return typed.ToPlain()
	case []any:
		plain := make([]any, len(typed))

		for i, element := range typed {
			plain[i] = unwrapValue(element)
		}

		return plain
	default:
		return value
	}
}

func keyString(key any) string {
	s, isString := key.(string)
	if isString {
		return s
	}

	return fmt.Sprintf("%v", key)
}
