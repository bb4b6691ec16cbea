package conf

import "github.com/0xalexb/hjarta-conf/include"

// DefaultMaxSize is the default byte ceiling for a configuration file.
const DefaultMaxSize int64 = 1 << 20

// DefaultEnvPrefix is the default prefix for environment-variable overrides.
const DefaultEnvPrefix = "INFRA_"

// DefaultSentinelDir is the default sentinel subdirectory marking the project root.
const DefaultSentinelDir = "etc"

// Options holds loader settings. They are loader configuration, not data,
// and survive every load and reload.
type Options struct {
	MaxSize        int64
	EnvPrefix      string
	EnvOverride    bool
	PathResolution bool
	Strategy       include.Strategy
	SentinelDir    string
	Environ        []string
	Expander       Expander
}

// Option defines a function type for applying loader options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MaxSize:        DefaultMaxSize,
		EnvPrefix:      DefaultEnvPrefix,
		EnvOverride:    true,
		PathResolution: true,
		Strategy:       include.StrategyReplace,
		SentinelDir:    DefaultSentinelDir,
		Environ:        nil,
		Expander:       nil,
	}
}

// WithMaxSize sets the byte ceiling for the configuration file.
func WithMaxSize(maxSize int64) Option {
	return func(opts *Options) {
		opts.MaxSize = maxSize
	}
}

// WithEnvPrefix sets the prefix for environment-variable overrides.
func WithEnvPrefix(prefix string) Option {
	return func(opts *Options) {
		opts.EnvPrefix = prefix
	}
}

// WithEnvOverride enables or disables environment-variable overrides.
func WithEnvOverride(enabled bool) Option {
	return func(opts *Options) {
		opts.EnvOverride = enabled
	}
}

// WithPathResolution enables or disables provenance-anchored rewriting of
// explicit relative paths. When disabled, the provenance map is discarded
// unused.
func WithPathResolution(enabled bool) Option {
	return func(opts *Options) {
		opts.PathResolution = enabled
	}
}

// WithMergeStrategy sets the include merge strategy. Load fails with
// ErrUnknownStrategy for values other than include.StrategyReplace and
// include.StrategyMerge.
func WithMergeStrategy(strategy include.Strategy) Option {
	return func(opts *Options) {
		opts.Strategy = strategy
	}
}

// WithSentinelDir sets the sentinel subdirectory name used for project-root
// discovery.
func WithSentinelDir(name string) Option {
	return func(opts *Options) {
		opts.SentinelDir = name
	}
}

// WithEnviron injects the environment snapshot consulted for overrides, in
// "NAME=value" form. A nil snapshot means the process environment, captured
// at construction; inject an empty non-nil slice for a loader that sees no
// environment at all.
func WithEnviron(environ []string) Option {
	return func(opts *Options) {
		opts.Environ = environ
	}
}

// WithExpander injects the include-expansion collaborator. Defaults to
// include.NewExpander().
func WithExpander(expander Expander) Option {
	return func(opts *Options) {
		opts.Expander = expander
	}
}
