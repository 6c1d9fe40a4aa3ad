// Package yamlconfig loads project.yml files into a config.Model.
//
// The document layout follows the Ceedling project file: top-level sections
// `project`, `paths`, `extension`, `vendor`, `libraries`, `tools`, `flags`,
// `defines`, `matchers`, `environment`, `vars` and `plugins`. Keys may be
// written as Ruby-style symbols (`:project:`); the leading colon is dropped
// before decoding. Anchors, aliases and `<<` merge keys are resolved by the
// YAML decoder.
//
// Every file is decoded on top of the model produced by config.Defaults, so
// a project file only needs the settings it changes. Scalars and lists
// replace the default; tools and rule tables replace the entry of the same
// name and leave the others alone.
package yamlconfig
