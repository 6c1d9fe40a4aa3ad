package config

import (
	"github.com/vk/unitgrid/internal/matcher"
	"github.com/zclconf/go-cty/cty"
)

// Built-in tool names.
const (
	ToolCompiler     = "test_compiler"
	ToolAssembler    = "test_assembler"
	ToolLinker       = "test_linker"
	ToolFixture      = "test_fixture"
	ToolPreprocessor = "test_file_preprocessor"
)

// Build contexts and operations used to key flag and define tables.
const (
	ContextTest       = "test"
	ContextPreprocess = "preprocess"

	OpCompile  = "compile"
	OpAssemble = "assemble"
	OpLink     = "link"
)

// Names of the union matchers consulted by the engine.
const (
	MatcherIncludePaths = "include_paths"
	MatcherSupport      = "support"
	MatcherDefines      = "defines"
)

// Model is the unified, format-agnostic representation of a project's
// build configuration.
type Model struct {
	Project    Project
	Paths      Paths
	Extensions Extensions
	Vendor     Vendor

	// Libraries are passed to the linker through the `libraries` collection.
	Libraries []string

	Tools map[string]*ToolDescriptor

	// Flags is keyed by context, then operation.
	Flags map[string]map[string]*matcher.Table
	// Defines is keyed by context.
	Defines map[string]*matcher.Table
	// Matchers holds the union tables (include_paths, support, defines).
	Matchers map[string]*matcher.Table

	Environment []EnvVar
	Vars        map[string]cty.Value
	Plugins     []string

	// Files lists the configuration files the model was loaded from.
	Files []string
}

// Project holds the project-wide feature toggles and settings.
type Project struct {
	Name                string
	BuildRoot           string
	TestFilePrefix      string
	MockPrefix          string
	UseMocks            bool
	UseTestPreprocessor bool
	UseExceptions       bool
	UseAssembly         bool
	CleanOnConfigChange bool
	CompileThreads      WorkerBudget
	TestThreads         WorkerBudget
}

// Paths lists the path specs of each file collection. A spec is a
// directory, a `dir/**` recursive directory or a glob.
type Paths struct {
	Test      []string
	Source    []string
	Include   []string
	Support   []string
	Libraries []string
}

// Extensions are the file extensions used for inputs and artifacts.
type Extensions struct {
	Source       string
	Header       string
	Assembly     string
	Object       string
	Executable   string
	Dependencies string
	TestPass     string
	TestFail     string
}

// Vendor locates the source directories of the test framework runtimes.
type Vendor struct {
	Unity      string
	CMock      string
	CException string
}

// EnvVar is one environment entry. Multiple values are joined by a space.
type EnvVar struct {
	Name   string
	Values []string
}

// StderrRedirect controls how a tool's stderr is folded into its output.
type StderrRedirect string

const (
	RedirectNone StderrRedirect = "none"
	RedirectAuto StderrRedirect = "auto"
	RedirectUnix StderrRedirect = "unix"
	RedirectWin  StderrRedirect = "win"
	RedirectTcsh StderrRedirect = "tcsh"
)

// Valid reports whether r is a known redirect policy. The empty value is
// treated as RedirectNone.
func (r StderrRedirect) Valid() bool {
	switch r {
	case "", RedirectNone, RedirectAuto, RedirectUnix, RedirectWin, RedirectTcsh:
		return true
	}
	return false
}

// ToolDescriptor describes an external executable and its argument
// template.
type ToolDescriptor struct {
	Name           string
	Executable     string
	StderrRedirect StderrRedirect
	Optional       bool
	Arguments      []ArgumentElement
}

// ArgumentElement is one entry of a tool's argument template: either a
// Literal, or a Pattern rendered once per element of the named Collection.
type ArgumentElement struct {
	Literal    string
	Pattern    string
	Collection string
}

// IsCollection reports whether the element expands over a collection.
func (a ArgumentElement) IsCollection() bool {
	return a.Collection != "" || a.Pattern != ""
}

// Arg is a shorthand for a literal argument element.
func Arg(literal string) ArgumentElement {
	return ArgumentElement{Literal: literal}
}

// Expand is a shorthand for a pattern→collection argument element.
func Expand(pattern, collection string) ArgumentElement {
	return ArgumentElement{Pattern: pattern, Collection: collection}
}

// FlagTable returns the flag table for a context and operation, or nil.
func (m *Model) FlagTable(context, operation string) *matcher.Table {
	if m == nil || m.Flags == nil {
		return nil
	}
	return m.Flags[context][operation]
}

// DefineTable returns the define table for a context, or nil.
func (m *Model) DefineTable(context string) *matcher.Table {
	if m == nil || m.Defines == nil {
		return nil
	}
	return m.Defines[context]
}

// Matcher returns the named union matcher, or nil.
func (m *Model) Matcher(name string) *matcher.Table {
	if m == nil || m.Matchers == nil {
		return nil
	}
	return m.Matchers[name]
}

// Tool returns the named tool descriptor, or nil.
func (m *Model) Tool(name string) *ToolDescriptor {
	if m == nil || m.Tools == nil {
		return nil
	}
	return m.Tools[name]
}
