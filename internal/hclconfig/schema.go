package hclconfig

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes all top-level blocks and attributes of one file.
type fileRoot struct {
	Project     *settingsBlock `hcl:"project,block"`
	Paths       *settingsBlock `hcl:"paths,block"`
	Extension   *settingsBlock `hcl:"extension,block"`
	Vendor      *settingsBlock `hcl:"vendor,block"`
	Tools       []*toolBlock   `hcl:"tool,block"`
	Flags       []*flagsBlock  `hcl:"flags,block"`
	Defines     []*tableBlock  `hcl:"defines,block"`
	Matchers    []*tableBlock  `hcl:"matcher,block"`
	Environment []*envBlock    `hcl:"environment,block"`
	Vars        []*varsBlock   `hcl:"vars,block"`
	Libraries   []string       `hcl:"libraries,optional"`
	Plugins     []string       `hcl:"plugins,optional"`
}

// settingsBlock defers decoding so the body can be applied over the
// current model's values.
type settingsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type projectBlock struct {
	Name                string         `hcl:"name,optional"`
	BuildRoot           string         `hcl:"build_root,optional"`
	TestFilePrefix      string         `hcl:"test_file_prefix,optional"`
	MockPrefix          string         `hcl:"mock_prefix,optional"`
	UseMocks            bool           `hcl:"use_mocks,optional"`
	UseTestPreprocessor bool           `hcl:"use_test_preprocessor,optional"`
	UseExceptions       bool           `hcl:"use_exceptions,optional"`
	UseAssembly         bool           `hcl:"use_assembly,optional"`
	CleanOnConfigChange bool           `hcl:"clean_on_config_change,optional"`
	CompileThreads      hcl.Expression `hcl:"compile_threads,optional"`
	TestThreads         hcl.Expression `hcl:"test_threads,optional"`
}

type pathsBlock struct {
	Test      []string `hcl:"test,optional"`
	Source    []string `hcl:"source,optional"`
	Include   []string `hcl:"include,optional"`
	Support   []string `hcl:"support,optional"`
	Libraries []string `hcl:"libraries,optional"`
}

type extensionBlock struct {
	Source       string `hcl:"source,optional"`
	Header       string `hcl:"header,optional"`
	Assembly     string `hcl:"assembly,optional"`
	Object       string `hcl:"object,optional"`
	Executable   string `hcl:"executable,optional"`
	Dependencies string `hcl:"dependencies,optional"`
	TestPass     string `hcl:"testpass,optional"`
	TestFail     string `hcl:"testfail,optional"`
}

type vendorBlock struct {
	Unity      string `hcl:"unity,optional"`
	CMock      string `hcl:"cmock,optional"`
	CException string `hcl:"c_exception,optional"`
}

type toolBlock struct {
	Name           string         `hcl:"name,label"`
	Executable     string         `hcl:"executable"`
	StderrRedirect string         `hcl:"stderr_redirect,optional"`
	Optional       bool           `hcl:"optional,optional"`
	Arguments      hcl.Expression `hcl:"arguments,optional"`
}

type flagsBlock struct {
	Context   string       `hcl:"context,label"`
	Operation string       `hcl:"operation,label"`
	Mode      string       `hcl:"mode,optional"`
	Rules     []*ruleBlock `hcl:"rule,block"`
}

type tableBlock struct {
	Name  string       `hcl:"name,label"`
	Mode  string       `hcl:"mode,optional"`
	Rules []*ruleBlock `hcl:"rule,block"`
}

type ruleBlock struct {
	Key    string         `hcl:"key,label"`
	Values hcl.Expression `hcl:"values,optional"`
}

type envBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

type varsBlock struct {
	Body hcl.Body `hcl:",remain"`
}
