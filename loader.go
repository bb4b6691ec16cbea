package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xalexb/hjarta-conf/include"

	"github.com/goccy/go-yaml"
)

// Expander defines the include-expansion collaborator consumed by the
// Loader. It must detect circular includes and refuse to resolve any
// included path outside projectRoot.
// See the include package for the production implementation.
type Expander interface {
	Expand(path string, strategy include.Strategy, projectRoot string) (yaml.MapSlice, map[string]string, error)
}

// Loader resolves a YAML configuration file into a Tree.
//
// A load runs a fixed sequence: size check, project-root discovery, include
// expansion, relative-path rewriting, environment overrides, commit,
// placeholder substitution. Every step's failure aborts the load; a failure
// before the commit leaves a previously loaded tree untouched. A failure
// during substitution leaves the tree with the pre-substitution data
// (substitution is not transactional with the commit).
//
// A Loader is not safe for concurrent use with itself; hot-reload callers
// running Reload on another goroutine must serialize tree access externally.
type Loader struct {
	tree    *Tree
	source  string
	options Options
}

// NewLoader creates a Loader with an empty Tree. The Tree pointer stays
// stable across loads and reloads.
func NewLoader(opts ...Option) *Loader {
	options := defaultOptions()

	for _, apply := range opts {
		apply(&options)
	}

	if options.Environ == nil {
		options.Environ = os.Environ()
	}

	if options.Expander == nil {
		options.Expander = include.NewExpander()
	}

	return &Loader{
		tree:    NewTree(),
		source:  "",
		options: options,
	}
}

// Tree returns the loader's configuration tree.
func (l *Loader) Tree() *Tree {
	return l.tree
}

// Load resolves the configuration file at path into the tree.
//
// Placeholder lookups during substitution read the committed state after
// path resolution and environment overrides, so a ${a.b} placeholder
// observes an environment-overridden a.b. Substitution is single-pass: a
// referenced value that itself contains a placeholder is inserted as its
// literal text.
func (l *Loader) Load(path string) error {
	if !l.options.Strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, l.options.Strategy)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", path, err)
	}

	err = l.checkSize(abs)
	if err != nil {
		return err
	}

	root := discoverProjectRoot(abs, l.options.SentinelDir)

	doc, prov, err := l.options.Expander.Expand(abs, l.options.Strategy, root)
	if err != nil {
		return err
	}

	if l.options.PathResolution {
		doc = resolveRelativePaths(doc, prov)
	}

	if l.options.EnvOverride {
		doc = applyEnvOverrides(doc, l.options.EnvPrefix, l.options.Environ)
	}

	err = l.tree.replaceFrom(doc)
	if err != nil {
		return err
	}

	substituted, err := substituteDocument(l.tree)
	if err != nil {
		return err
	}

	err = l.tree.replaceFrom(substituted)
	if err != nil {
		return err
	}

	l.source = abs

	slog.Debug("configuration loaded", "path", abs, "root", root)

	return nil
}

// Reload repeats the entire resolution pipeline against the previously
// loaded file. A failure before the commit step leaves the current tree
// untouched, so callers can keep serving the last good configuration.
func (l *Loader) Reload() error {
	if l.source == "" {
		return ErrNotLoaded
	}

	return l.Load(l.source)
}

// PreviewOverrides reports the overrides the environment snapshot would
// apply, as derived dotted path to coerced value, without mutating anything.
func (l *Loader) PreviewOverrides() map[string]any {
	preview := make(map[string]any)

	for _, override := range collectOverrides(l.options.EnvPrefix, l.options.Environ) {
		preview[strings.Join(override.segments, ".")] = override.value
	}

	return preview
}

// checkSize rejects directories and files above the configured byte ceiling
// before any parsing happens.
func (l *Loader) checkSize(abs string) error {
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %q: %w", abs, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%q: %w", abs, ErrPathIsDirectory)
	}

	if info.Size() > l.options.MaxSize {
		return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrConfigTooLarge, abs, info.Size(), l.options.MaxSize)
	}

	return nil
}

// discoverProjectRoot walks ancestor directories of the target file until
// one contains the sentinel subdirectory; that ancestor becomes the
// include-resolution boundary. Without a sentinel anywhere up the tree, the
// boundary narrows to the file's own directory.
func discoverProjectRoot(absFile, sentinel string) string {
	start := filepath.Dir(absFile)

	for current := start; ; {
		info, err := os.Stat(filepath.Join(current, sentinel))
		if err == nil && info.IsDir() {
			return current
		}

		parent := filepath.Dir(current)
		if parent == current {
			return start
		}

		current = parent
	}
}
