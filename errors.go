package conf

import "errors"

// ErrConfigTooLarge is returned when the configuration file exceeds the size ceiling.
var ErrConfigTooLarge = errors.New("configuration file too large")

// ErrPathNotFound is returned by Require and by placeholder substitution
// when a dotted path does not exist in the tree.
var ErrPathNotFound = errors.New("path not found")

// ErrReservedKey is returned by Set when a key collides with a structural accessor name.
var ErrReservedKey = errors.New("reserved key")

// ErrUnknownStrategy is returned when the configured merge strategy is not recognized.
var ErrUnknownStrategy = errors.New("unknown merge strategy")

// ErrNotLoaded is returned by Reload when no file has been loaded yet.
var ErrNotLoaded = errors.New("no configuration loaded")

// ErrPathIsDirectory is returned when the configuration path points to a directory instead of a file.
var ErrPathIsDirectory = errors.New("path is a directory, not a file")

// ErrEmptyModuleName is returned by NewModule when the module name is empty.
var ErrEmptyModuleName = errors.New("module name must not be empty")
