package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
)

// Validate checks the model eagerly so that configuration mistakes surface
// before any work is scheduled.
func (m *Model) Validate() error {
	if strings.TrimSpace(m.Project.BuildRoot) == "" {
		return builderr.Configf("project.build_root", "must not be empty")
	}
	if !m.Project.CompileThreads.Valid() {
		return builderr.Configf("project.compile_threads", "worker budget must be 'auto' or a positive integer, got %d", m.Project.CompileThreads.Count)
	}
	if !m.Project.TestThreads.Valid() {
		return builderr.Configf("project.test_threads", "worker budget must be 'auto' or a positive integer, got %d", m.Project.TestThreads.Count)
	}
	if m.Extensions.Source == "" || m.Extensions.Object == "" {
		return builderr.Configf("extension", "source and object extensions are required")
	}

	for _, name := range m.RequiredTools() {
		if m.Tool(name) == nil {
			return builderr.Configf("tools."+name, "tool is required but not defined")
		}
	}
	for _, name := range sortedKeys(m.Tools) {
		if err := m.Tools[name].Validate("tools." + name); err != nil {
			return err
		}
	}

	for _, ctxName := range sortedKeys(m.Flags) {
		ops := m.Flags[ctxName]
		for _, op := range sortedKeys(ops) {
			if err := ops[op].Validate(); err != nil {
				return err
			}
		}
	}
	for _, name := range sortedKeys(m.Defines) {
		if err := m.Defines[name].Validate(); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(m.Matchers) {
		if err := m.Matchers[name].Validate(); err != nil {
			return err
		}
	}

	for i, env := range m.Environment {
		if strings.TrimSpace(env.Name) == "" {
			return builderr.Configf(fmt.Sprintf("environment[%d]", i), "entry has no name")
		}
	}
	return nil
}

// RequiredTools lists the tools a build with this configuration invokes.
func (m *Model) RequiredTools() []string {
	names := []string{ToolCompiler, ToolLinker, ToolFixture}
	if m.Project.UseTestPreprocessor {
		names = append(names, ToolPreprocessor)
	}
	if m.Project.UseAssembly {
		names = append(names, ToolAssembler)
	}
	return names
}

// Validate checks a single tool descriptor. path is the configuration path
// reported in errors.
func (t *ToolDescriptor) Validate(path string) error {
	if t == nil {
		return builderr.Configf(path, "tool is nil")
	}
	if strings.TrimSpace(t.Executable) == "" {
		return builderr.Configf(path, "tool '%s' has no executable", t.Name)
	}
	if tok, bad := malformedToken(t.Executable); bad {
		return builderr.Configf(path+".executable", "malformed positional token '%s'", tok)
	}
	if !t.StderrRedirect.Valid() {
		return builderr.Configf(path+".stderr_redirect", "unknown redirect policy '%s'", t.StderrRedirect)
	}
	for i, arg := range t.Arguments {
		argPath := fmt.Sprintf("%s.arguments[%d]", path, i)
		if arg.IsCollection() {
			if arg.Literal != "" {
				return builderr.Configf(argPath, "element mixes a literal with a pattern")
			}
			if arg.Pattern == "" || arg.Collection == "" {
				return builderr.Configf(argPath, "pattern element needs both a pattern and a collection")
			}
			continue
		}
		if tok, bad := malformedToken(arg.Literal); bad {
			return builderr.Configf(argPath, "malformed positional token '%s'", tok)
		}
	}
	return nil
}

// malformedToken finds a `${...}` token that is not a positive index.
// Escaped tokens (`\${`) are ignored.
func malformedToken(s string) (string, bool) {
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '$' || s[i+1] != '{' {
			continue
		}
		if i > 0 && s[i-1] == '\\' {
			continue
		}
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			return s[i:], true
		}
		tok := s[i : i+end+1]
		n, err := strconv.Atoi(tok[2 : len(tok)-1])
		if err != nil || n < 1 {
			return tok, true
		}
		i += end
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
