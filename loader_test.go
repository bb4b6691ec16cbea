package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/0xalexb/hjarta-conf/include"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, relative, content string) string {
	t.Helper()

	path := filepath.Join(root, relative)

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	require.NoError(t, err)

	err = os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoader_Load_PlainDocument(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
name: demo
database:
  host: localhost
  port: 5432
flags:
  - 1
  - two
`)

	loader := NewLoader(WithEnviron([]string{}), WithEnvOverride(false))

	err := loader.Load(entry)
	require.NoError(t, err)

	tree := loader.Tree()
	assert.Equal(t, "demo", tree.Get("name"))
	assert.Equal(t, "localhost", tree.Get("database.host"))
	assert.Equal(t, int64(5432), tree.Get("database.port"))
	assert.Equal(t, []any{int64(1), "two"}, tree.Get("flags"))
}

func TestLoader_Load_EnvOverrideWins(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
a:
  b: 1
`)

	loader := NewLoader(WithEnviron([]string{"INFRA_A_B=5"}))

	err := loader.Load(entry)
	require.NoError(t, err)

	assert.Equal(t, int64(5), loader.Tree().Get("a.b"))
}

func TestLoader_Load_EnvOverrideDisabled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
a:
  b: 1
`)

	loader := NewLoader(
		WithEnviron([]string{"INFRA_A_B=5"}),
		WithEnvOverride(false),
	)

	err := loader.Load(entry)
	require.NoError(t, err)

	assert.Equal(t, int64(1), loader.Tree().Get("a.b"))
}

func TestLoader_Load_EmptyEnvironIgnoresProcessEnvironment(t *testing.T) {
	t.Setenv("INFRA_A", "9")

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
a:
  b: 1
`)

	loader := NewLoader(WithEnviron([]string{}))

	err := loader.Load(entry)
	require.NoError(t, err)

	assert.Equal(t, int64(1), loader.Tree().Get("a.b"))
}

func TestLoader_Load_NilEnvironUsesProcessEnvironment(t *testing.T) {
	t.Setenv("HJARTACONF_TEST_A_B", "9")

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
a:
  b: 1
`)

	loader := NewLoader(WithEnvPrefix("HJARTACONF_TEST_"))

	err := loader.Load(entry)
	require.NoError(t, err)

	assert.Equal(t, int64(9), loader.Tree().Get("a.b"))
}

func TestLoader_Load_Substitution(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
a:
  b: 1
c: ${a.b}-X
`)

	loader := NewLoader(WithEnviron([]string{}))

	err := loader.Load(entry)
	require.NoError(t, err)

	assert.Equal(t, "1-X", loader.Tree().Get("c"))
}

func TestLoader_Load_SubstitutionSeesOverride(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
logging:
  level: info
banner: level=${logging.level}
`)

	loader := NewLoader(WithEnviron([]string{"INFRA_LOGGING_LEVEL=debug"}))

	err := loader.Load(entry)
	require.NoError(t, err)

	assert.Equal(t, "level=debug", loader.Tree().Get("banner"))
}

func TestLoader_Load_UndefinedPlaceholderFailsLoad(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
a: 1
c: ${nope.here}
`)

	loader := NewLoader(WithEnviron([]string{}))

	err := loader.Load(entry)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Contains(t, err.Error(), "nope.here")

	// Substitution is not transactional: the pre-substitution data stays
	// committed.
	assert.Equal(t, int64(1), loader.Tree().Get("a"))
	assert.Equal(t, "${nope.here}", loader.Tree().Get("c"))
}

func TestLoader_Load_IncludePathRewriting(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	entry := writeConfig(t, projectDir, "etc/app.yaml", `
database: !include "sub/db.yaml"
`)
	writeConfig(t, projectDir, "etc/sub/db.yaml", `
path: "./data.db"
`)

	loader := NewLoader(WithEnviron([]string{}))

	err := loader.Load(entry)
	require.NoError(t, err)

	// Anchored at the included file's directory (etc/sub), not the entry's.
	assert.Equal(t,
		filepath.Join(projectDir, "etc", "sub", "data.db"),
		loader.Tree().Get("database.path"),
	)
}

func TestLoader_Load_PathResolutionDisabled(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	entry := writeConfig(t, projectDir, "etc/app.yaml", `
path: "./data.db"
`)

	loader := NewLoader(WithEnviron([]string{}), WithPathResolution(false))

	err := loader.Load(entry)
	require.NoError(t, err)

	assert.Equal(t, "./data.db", loader.Tree().Get("path"))
}

func TestLoader_Load_BoundaryViolationPropagates(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	entry := writeConfig(t, projectDir, "etc/app.yaml", `
stolen: !include "../../../../../../etc/passwd"
`)

	loader := NewLoader(WithEnviron([]string{}))

	err := loader.Load(entry)

	require.Error(t, err)
	assert.ErrorIs(t, err, include.ErrOutsideRoot)
	assert.Equal(t, 0, loader.Tree().Len())
}

func TestLoader_Load_TooLarge(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
key: value
`)

	loader := NewLoader(WithEnviron([]string{}), WithMaxSize(4))

	err := loader.Load(entry)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigTooLarge)
}

func TestLoader_Load_Directory(t *testing.T) {
	t.Parallel()

	loader := NewLoader(WithEnviron([]string{}))

	err := loader.Load(t.TempDir())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathIsDirectory)
}

func TestLoader_Load_MissingFile(t *testing.T) {
	t.Parallel()

	loader := NewLoader(WithEnviron([]string{}))

	err := loader.Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat")
}

func TestLoader_Load_UnknownStrategy(t *testing.T) {
	t.Parallel()

	loader := NewLoader(
		WithEnviron([]string{}),
		WithMergeStrategy(include.Strategy("append")),
	)

	err := loader.Load("irrelevant.yaml")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestLoader_Reload_NotLoaded(t *testing.T) {
	t.Parallel()

	loader := NewLoader(WithEnviron([]string{}))

	err := loader.Reload()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestLoader_Reload_PicksUpChanges(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
level: info
`)

	loader := NewLoader(WithEnviron([]string{}))
	require.NoError(t, loader.Load(entry))

	tree := loader.Tree()
	assert.Equal(t, "info", tree.Get("level"))

	writeConfig(t, root, "app.yaml", `
level: debug
`)

	require.NoError(t, loader.Reload())

	// Same Tree pointer observes the new data.
	assert.Equal(t, "debug", tree.Get("level"))
}

func TestLoader_Reload_FailureKeepsPreviousTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
level: info
`)

	loader := NewLoader(WithEnviron([]string{}))
	require.NoError(t, loader.Load(entry))

	err := os.Remove(entry)
	require.NoError(t, err)

	reloadErr := loader.Reload()

	require.Error(t, reloadErr)
	assert.Equal(t, "info", loader.Tree().Get("level"))
}

func TestLoader_Load_RoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	entry := writeConfig(t, root, "app.yaml", `
name: demo
database:
  host: localhost
  replicas:
    - name: a
    - name: b
`)

	loader := NewLoader(WithEnviron([]string{}), WithEnvOverride(false))
	require.NoError(t, loader.Load(entry))

	serialized, err := yaml.Marshal(loader.Tree().ToPlain())
	require.NoError(t, err)

	reEntry := writeConfig(t, root, "app2.yaml", string(serialized))

	reloaded := NewLoader(WithEnviron([]string{}), WithEnvOverride(false), WithPathResolution(false))
	require.NoError(t, reloaded.Load(reEntry))

	assert.Equal(t, loader.Tree().ToPlain(), reloaded.Tree().ToPlain())
}

type fakeExpander struct {
	doc  yaml.MapSlice
	prov map[string]string
	err  error

	gotPath     string
	gotStrategy include.Strategy
	gotRoot     string
}

func (f *fakeExpander) Expand(path string, strategy include.Strategy, projectRoot string) (yaml.MapSlice, map[string]string, error) {
	f.gotPath = path
	f.gotStrategy = strategy
	f.gotRoot = projectRoot

	return f.doc, f.prov, f.err
}

func TestLoader_Load_InjectedExpanderReceivesBoundary(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()

	// The sentinel directory marks projectDir as the boundary.
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, "etc", "nested"), 0o750))

	entry := writeConfig(t, projectDir, "etc/nested/app.yaml", `
key: value
`)

	fake := &fakeExpander{
		doc:  yaml.MapSlice{{Key: "key", Value: "value"}},
		prov: map[string]string{"key": entry},
	}

	loader := NewLoader(WithEnviron([]string{}), WithExpander(fake))

	err := loader.Load(entry)
	require.NoError(t, err)

	assert.Equal(t, entry, fake.gotPath)
	assert.Equal(t, include.StrategyReplace, fake.gotStrategy)
	assert.Equal(t, projectDir, fake.gotRoot)
	assert.Equal(t, "value", loader.Tree().Get("key"))
}

func TestDiscoverProjectRoot_FallbackToOwnDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	entry := writeConfig(t, dir, "standalone.yaml", `
key: value
`)

	root := discoverProjectRoot(entry, "definitely-not-a-real-sentinel-dir")

	assert.Equal(t, dir, root)
}
