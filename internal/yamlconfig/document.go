package yamlconfig

import (
	"fmt"
	"strings"

	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/matcher"
	"gopkg.in/yaml.v3"
)

// document is the top level of a project file. The settings sections are
// kept as raw nodes and decoded over the current model values; an absent
// section is a zero node and leaves the defaults untouched.
type document struct {
	Project     yaml.Node                       `yaml:"project"`
	Paths       yaml.Node                       `yaml:"paths"`
	Extension   yaml.Node                       `yaml:"extension"`
	Vendor      yaml.Node                       `yaml:"vendor"`
	Libraries   []string                        `yaml:"libraries"`
	Tools       map[string]*toolDoc             `yaml:"tools"`
	Flags       map[string]map[string]ruleTable `yaml:"flags"`
	Defines     map[string]ruleTable            `yaml:"defines"`
	Matchers    map[string]ruleTable            `yaml:"matchers"`
	Environment []envEntry                      `yaml:"environment"`
	Vars        map[string]any                  `yaml:"vars"`
	Plugins     *pluginsDoc                     `yaml:"plugins"`
}

type projectDoc struct {
	Name                string `yaml:"name"`
	BuildRoot           string `yaml:"build_root"`
	TestFilePrefix      string `yaml:"test_file_prefix"`
	MockPrefix          string `yaml:"mock_prefix"`
	UseMocks            bool   `yaml:"use_mocks"`
	UseTestPreprocessor bool   `yaml:"use_test_preprocessor"`
	UseExceptions       bool   `yaml:"use_exceptions"`
	UseAssembly         bool   `yaml:"use_assembly"`
	CleanOnConfigChange bool   `yaml:"clean_on_config_change"`
	CompileThreads      budget `yaml:"compile_threads"`
	TestThreads         budget `yaml:"test_threads"`
}

func newProjectDoc(p config.Project) projectDoc {
	return projectDoc{
		Name:                p.Name,
		BuildRoot:           p.BuildRoot,
		TestFilePrefix:      p.TestFilePrefix,
		MockPrefix:          p.MockPrefix,
		UseMocks:            p.UseMocks,
		UseTestPreprocessor: p.UseTestPreprocessor,
		UseExceptions:       p.UseExceptions,
		UseAssembly:         p.UseAssembly,
		CleanOnConfigChange: p.CleanOnConfigChange,
		CompileThreads:      budget(p.CompileThreads),
		TestThreads:         budget(p.TestThreads),
	}
}

func (d projectDoc) apply(p *config.Project) {
	p.Name = d.Name
	p.BuildRoot = d.BuildRoot
	p.TestFilePrefix = d.TestFilePrefix
	p.MockPrefix = d.MockPrefix
	p.UseMocks = d.UseMocks
	p.UseTestPreprocessor = d.UseTestPreprocessor
	p.UseExceptions = d.UseExceptions
	p.UseAssembly = d.UseAssembly
	p.CleanOnConfigChange = d.CleanOnConfigChange
	p.CompileThreads = config.WorkerBudget(d.CompileThreads)
	p.TestThreads = config.WorkerBudget(d.TestThreads)
}

type pathsDoc struct {
	Test      []string `yaml:"test"`
	Source    []string `yaml:"source"`
	Include   []string `yaml:"include"`
	Support   []string `yaml:"support"`
	Libraries []string `yaml:"libraries"`
}

type extensionDoc struct {
	Source       string `yaml:"source"`
	Header       string `yaml:"header"`
	Assembly     string `yaml:"assembly"`
	Object       string `yaml:"object"`
	Executable   string `yaml:"executable"`
	Dependencies string `yaml:"dependencies"`
	TestPass     string `yaml:"testpass"`
	TestFail     string `yaml:"testfail"`
}

type vendorDoc struct {
	Unity      string `yaml:"unity"`
	CMock      string `yaml:"cmock"`
	CException string `yaml:"c_exception"`
}

type pluginsDoc struct {
	Enabled []string `yaml:"enabled"`
}

// budget accepts `auto`, `:auto` or an integer.
type budget config.WorkerBudget

func (b *budget) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: worker budget must be a scalar", value.Line)
	}
	parsed, err := config.ParseWorkerBudget(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = budget(parsed)
	return nil
}

type toolDoc struct {
	Executable     string     `yaml:"executable"`
	StderrRedirect string     `yaml:"stderr_redirect"`
	Optional       bool       `yaml:"optional"`
	Arguments      []argument `yaml:"arguments"`
}

func (d *toolDoc) descriptor(name string) *config.ToolDescriptor {
	args := make([]config.ArgumentElement, len(d.Arguments))
	for i, a := range d.Arguments {
		args[i] = config.ArgumentElement(a)
	}
	return &config.ToolDescriptor{
		Name:           name,
		Executable:     d.Executable,
		StderrRedirect: config.StderrRedirect(strings.TrimPrefix(d.StderrRedirect, ":")),
		Optional:       d.Optional,
		Arguments:      args,
	}
}

// argument is either a literal string or a one-entry mapping from a
// pattern to the collection it expands over:
//
//	- -c "${1}"
//	- -I"$": COLLECTION_PATHS_INCLUDE
type argument config.ArgumentElement

func (a *argument) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*a = argument(config.Arg(value.Value))
		return nil
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("line %d: a collection argument maps exactly one pattern to a collection", value.Line)
		}
		pattern, collection := value.Content[0].Value, value.Content[1].Value
		*a = argument(config.Expand(pattern, collectionName(collection)))
		return nil
	default:
		return fmt.Errorf("line %d: tool argument must be a string or a pattern mapping", value.Line)
	}
}

// collectionName accepts the Ceedling spelling COLLECTION_PATHS_INCLUDE for
// the collection paths_include.
func collectionName(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, ":"))
	return strings.TrimPrefix(s, "collection_")
}

// ruleTable keeps the order of the rules as written. A plain list is a
// single catch-all rule.
type ruleTable struct {
	rules []matcher.Rule
}

func (t *ruleTable) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		values, err := stringValues(value)
		if err != nil {
			return err
		}
		t.rules = []matcher.Rule{{Key: "*", Values: values}}
		return nil
	case yaml.MappingNode:
		t.rules = nil
		for _, kv := range pairs(value) {
			key, val := kv[0], kv[1]
			rule := matcher.Rule{Key: key.Value}
			if !isNull(val) {
				values, err := stringValues(val)
				if err != nil {
					return err
				}
				rule.Values = values
			}
			t.rules = append(t.rules, rule)
		}
		return nil
	default:
		return fmt.Errorf("line %d: rule table must be a list or a mapping", value.Line)
	}
}

func (t ruleTable) table(name string, mode matcher.Mode) *matcher.Table {
	return matcher.NewTable(name, mode, t.rules...)
}

// envEntry is one `- NAME: value` item of the environment list. The value
// may be a list, whose elements are joined by a space.
type envEntry config.EnvVar

func (e *envEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: environment entry must map one name to its value", value.Line)
	}
	values, err := stringValues(value.Content[1])
	if err != nil {
		return err
	}
	*e = envEntry{Name: value.Content[0].Value, Values: values}
	return nil
}

// stringValues reads a scalar or a list of scalars. Values keep their
// source text, so `-O2` and `42` are both plain strings.
func stringValues(value *yaml.Node) ([]string, error) {
	if value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	switch value.Kind {
	case yaml.ScalarNode:
		return []string{value.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind == yaml.AliasNode {
				item = item.Alias
			}
			if item.Kind == yaml.SequenceNode {
				nested, err := stringValues(item)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
				continue
			}
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: expected a string", item.Line)
			}
			out = append(out, item.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// pairs lists the key/value nodes of a mapping in order, splicing in the
// entries of `<<` merge keys ahead of the mapping's own.
func pairs(value *yaml.Node) [][2]*yaml.Node {
	var merged, own [][2]*yaml.Node
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if key.ShortTag() != "!!merge" {
			own = append(own, [2]*yaml.Node{key, val})
			continue
		}
		if val.Kind == yaml.AliasNode {
			val = val.Alias
		}
		sources := []*yaml.Node{val}
		if val.Kind == yaml.SequenceNode {
			sources = val.Content
		}
		for _, src := range sources {
			if src.Kind == yaml.AliasNode {
				src = src.Alias
			}
			if src.Kind == yaml.MappingNode {
				merged = append(merged, pairs(src)...)
			}
		}
	}
	return append(merged, own...)
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// present reports whether a section node was set to something other than
// null.
func present(n *yaml.Node) bool {
	return n.Kind != 0 && !isNull(n)
}
