// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the fully resolved requests handed to the build-step
// invoker. Each carries the owning test's key for diagnostics.
package model

// CompileStep compiles or assembles one source into one object.
type CompileStep struct {
	Test        string
	Source      string
	Object      string
	DepFile     string
	Flags       []string
	SearchPaths []string
	Defines     []string
}

// LinkStep links a test executable.
type LinkStep struct {
	Test       string
	Objects    []string
	Executable string
	Flags      []string
}

// PreprocessStep runs the preprocessor over a test file or header.
type PreprocessStep struct {
	Test        string
	Source      string
	Output      string
	Flags       []string
	SearchPaths []string
	Defines     []string
}

// ExecStep runs a linked test executable.
type ExecStep struct {
	Test       string
	Executable string
}
