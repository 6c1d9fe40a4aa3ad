// Package config defines the format-agnostic build configuration: project
// settings, file layout, tool descriptors and the rule tables that tailor
// flags and defines per file.
//
// Loaders for concrete file formats (YAML, HCL) live in separate packages
// and translate into a Model layered over Defaults. Once validated, a Model
// produces one immutable Snapshot per build context; the snapshot is what
// the engine, the command builder and the build cache read from.
package config
