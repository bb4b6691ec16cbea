// Package include expands !include tags in YAML documents.
//
// An !include tag may appear at any value position and names a file whose
// parsed content replaces the tag. Relative targets resolve against the
// directory of the including file, and an optional "#section.path" suffix
// selects a subtree of the included document:
//
//	database: !include "db/primary.yaml"
//	limits: !include "../shared/defaults.yaml#limits"
//
// Expansion refuses targets outside the project root passed to Expand and
// fails on circular includes. Alongside the expanded document it produces a
// provenance map recording, for every scalar value, the file that defined
// it; the conf package uses this to anchor relative-path rewriting at the
// correct directory.
//
// With StrategyMerge, a sequence consisting entirely of includes that all
// expand to mappings collapses into one deep-merged mapping, with earlier
// entries forming the base.
package include
