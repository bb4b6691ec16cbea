// Package conf resolves a hierarchical YAML configuration into a single
// in-memory tree.
//
// A load runs three independent transformations over the include-expanded
// document, in a fixed order:
//   - relative-path rewriting: explicit "./" and "../" strings become
//     absolute paths anchored at the directory of the file that defined
//     them, using the provenance map produced by include expansion
//   - environment overrides: variables named PREFIX_A_B deep-merge into the
//     document at a.b with coerced values, winning over file-sourced values
//   - placeholder substitution: ${a.b.c} tokens inside string values are
//     replaced with the stringified value found at that dotted path in the
//     committed tree
//
// Included files are resolved by the include package behind the Expander
// interface and may not escape the project root, discovered by walking
// ancestors of the target file for a sentinel subdirectory.
//
// # Example
//
// A typical usage pattern:
//
//	loader := conf.NewLoader(conf.WithEnvPrefix("APP_"))
//	if err := loader.Load("etc/app.yaml"); err != nil {
//	    // Handle error: file too large, include cycle, undefined ${...}, ...
//	}
//	host := loader.Tree().GetOr("database.host", "localhost")
//
// For Fx applications, NewModule provides a named *Loader and *Tree to the
// container.
package conf
