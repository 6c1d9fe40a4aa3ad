package config

import (
	"github.com/vk/unitgrid/internal/matcher"
	"github.com/zclconf/go-cty/cty"
)

// Defaults returns the built-in configuration that project files are
// layered over. Every call returns a fresh model.
func Defaults() *Model {
	return &Model{
		Project: Project{
			Name:           "project",
			BuildRoot:      "build",
			TestFilePrefix: "test_",
			MockPrefix:     "mock_",
			UseMocks:       true,
			CompileThreads: AutoBudget,
			TestThreads:    AutoBudget,
		},
		Paths: Paths{
			Test:    []string{"test/**"},
			Source:  []string{"src/**"},
			Support: []string{"test/support"},
		},
		Extensions: Extensions{
			Source:       ".c",
			Header:       ".h",
			Assembly:     ".s",
			Object:       ".o",
			Executable:   ".out",
			Dependencies: ".d",
			TestPass:     ".pass",
			TestFail:     ".fail",
		},
		Vendor: Vendor{
			Unity:      "vendor/unity/src",
			CMock:      "vendor/cmock/src",
			CException: "vendor/c_exception/lib",
		},
		Tools: DefaultTools(),
		Flags: map[string]map[string]*matcher.Table{},
		Defines: map[string]*matcher.Table{
			ContextTest: matcher.NewTable("defines.test", matcher.FirstMatch,
				matcher.Rule{Key: "*", Values: []string{"TEST"}},
			),
		},
		Matchers: map[string]*matcher.Table{},
		Vars:     map[string]cty.Value{},
		Plugins:  []string{"stdout_report"},
	}
}

// DefaultTools returns the gcc-based tool descriptors. Positional inputs
// follow the conventions of the build-step invoker.
func DefaultTools() map[string]*ToolDescriptor {
	return map[string]*ToolDescriptor{
		ToolCompiler: {
			Name:           ToolCompiler,
			Executable:     "gcc",
			StderrRedirect: RedirectNone,
			Arguments: []ArgumentElement{
				Arg(`-I"${5}"`),
				Arg(`-D${6}`),
				Arg(`${4}`),
				Arg(`-c "${1}"`),
				Arg(`-o "${2}"`),
				Arg(`-MMD -MF "${3}"`),
			},
		},
		ToolAssembler: {
			Name:           ToolAssembler,
			Executable:     "as",
			StderrRedirect: RedirectNone,
			Arguments: []ArgumentElement{
				Arg(`${3}`),
				Arg(`-I"${4}"`),
				Arg(`"${1}"`),
				Arg(`-o "${2}"`),
			},
		},
		ToolLinker: {
			Name:           ToolLinker,
			Executable:     "gcc",
			StderrRedirect: RedirectNone,
			Arguments: []ArgumentElement{
				Arg(`"${1}"`),
				Arg(`${3}`),
				Expand(`-L"$"`, "paths_libraries"),
				Expand(`$`, "libraries"),
				Arg(`-o "${2}"`),
			},
		},
		ToolFixture: {
			Name:           ToolFixture,
			Executable:     `${1}`,
			StderrRedirect: RedirectAuto,
		},
		ToolPreprocessor: {
			Name:           ToolPreprocessor,
			Executable:     "gcc",
			StderrRedirect: RedirectNone,
			Arguments: []ArgumentElement{
				Arg(`-E`),
				Arg(`-I"${4}"`),
				Arg(`-D${5}`),
				Arg(`${3}`),
				Arg(`"${1}"`),
				Arg(`-o "${2}"`),
			},
		},
	}
}
