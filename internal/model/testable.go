// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Testable record and the values each stage adds to it.
package model

import (
	"path/filepath"
	"strings"
)

// Testable is one test source file and its derived build state.
type Testable struct {
	// Key is the file's base name without extension. It is unique within a
	// run.
	Key      string
	Filepath string

	// Output directories, set during path preparation.
	BuildDir      string
	ObjectDir     string
	MockDir       string
	PreprocessDir string
	RunnerDir     string
	ResultsDir    string

	// Directives pulled from the test source.
	Directives Directives

	// Context resolution.
	SearchPaths       []string
	CompileFlags      []string
	AssembleFlags     []string
	LinkFlags         []string
	Defines           []string
	PreprocessDefines []string

	// Context extraction and planning.
	Includes         []string
	TestCases        []TestCase
	Mocks            []Mock
	PreprocessedFile string
	RunnerSource     string

	// Artifact resolution and later stages.
	Sources    []Source
	Objects    []string
	Executable string
	ResultPass string
	ResultFail string
}

// KeyFor derives a Testable key from a source path.
func KeyFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CompileInput returns the file the compiler reads for the test itself:
// the preprocessed form when one was produced, otherwise the source.
func (t *Testable) CompileInput() string {
	if t.PreprocessedFile != "" {
		return t.PreprocessedFile
	}
	return t.Filepath
}

// Clone returns a copy whose slices can be replaced without touching t.
func (t *Testable) Clone() *Testable {
	c := *t
	return &c
}

// Directives are the build directives found in a test source.
type Directives struct {
	// Sources are extra files named by TEST_SOURCE_FILE. A header listed
	// here is made visible to the build but never linked.
	Sources []string
	// IncludePaths are extra search paths named by TEST_INCLUDE_PATH.
	IncludePaths []string
	// Resolved maps each directive source to its located path.
	Resolved []Source
}

// TestCase is one test function found in a test source.
type TestCase struct {
	Name string
	Line int
}
