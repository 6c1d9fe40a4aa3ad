// This file translates decoded HCL blocks into the format-agnostic
// configuration model defined in the config package.

package hclconfig

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/matcher"
	"github.com/zclconf/go-cty/cty"
)

// translateProject applies a project block over p. Attributes the block
// omits keep their current value.
func (l *Loader) translateProject(ctx context.Context, body hcl.Body, p *config.Project) error {
	b := projectBlock{
		Name:                p.Name,
		BuildRoot:           p.BuildRoot,
		TestFilePrefix:      p.TestFilePrefix,
		MockPrefix:          p.MockPrefix,
		UseMocks:            p.UseMocks,
		UseTestPreprocessor: p.UseTestPreprocessor,
		UseExceptions:       p.UseExceptions,
		UseAssembly:         p.UseAssembly,
		CleanOnConfigChange: p.CleanOnConfigChange,
	}
	if diags := gohcl.DecodeBody(body, nil, &b); diags.HasErrors() {
		return builderr.Configf("project", "%s", diags.Error())
	}

	p.Name = b.Name
	p.BuildRoot = b.BuildRoot
	p.TestFilePrefix = b.TestFilePrefix
	p.MockPrefix = b.MockPrefix
	p.UseMocks = b.UseMocks
	p.UseTestPreprocessor = b.UseTestPreprocessor
	p.UseExceptions = b.UseExceptions
	p.UseAssembly = b.UseAssembly
	p.CleanOnConfigChange = b.CleanOnConfigChange

	if isExprDefined(ctx, b.CompileThreads, "compile_threads") {
		budget, err := workerBudget(b.CompileThreads)
		if err != nil {
			return builderr.Configf("project.compile_threads", "%s", err)
		}
		p.CompileThreads = budget
	}
	if isExprDefined(ctx, b.TestThreads, "test_threads") {
		budget, err := workerBudget(b.TestThreads)
		if err != nil {
			return builderr.Configf("project.test_threads", "%s", err)
		}
		p.TestThreads = budget
	}
	return nil
}

// workerBudget accepts either a number or a string such as "auto".
func workerBudget(expr hcl.Expression) (config.WorkerBudget, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return config.WorkerBudget{}, diags
	}
	switch {
	case val.IsNull():
		return config.WorkerBudget{}, fmt.Errorf("worker budget must not be null")
	case val.Type() == cty.Number:
		n, _ := val.AsBigFloat().Int64()
		return config.Fixed(int(n)), nil
	case val.Type() == cty.String:
		return config.ParseWorkerBudget(val.AsString())
	default:
		return config.WorkerBudget{}, fmt.Errorf("worker budget must be 'auto' or a number, got %s", val.Type().FriendlyName())
	}
}

// translateTool converts a tool block. Arguments are a list whose elements
// are either literal strings or objects with a pattern and a collection.
func (l *Loader) translateTool(ctx context.Context, t *toolBlock) (*config.ToolDescriptor, error) {
	path := "tools." + t.Name
	tool := &config.ToolDescriptor{
		Name:           t.Name,
		Executable:     t.Executable,
		StderrRedirect: config.StderrRedirect(t.StderrRedirect),
		Optional:       t.Optional,
	}
	if !isExprDefined(ctx, t.Arguments, "arguments") {
		return tool, nil
	}

	val, diags := t.Arguments.Value(nil)
	if diags.HasErrors() {
		return nil, builderr.Configf(path+".arguments", "%s", diags.Error())
	}
	if val.IsNull() {
		return tool, nil
	}
	if !val.Type().IsTupleType() && !val.Type().IsListType() {
		return nil, builderr.Configf(path+".arguments", "must be a list")
	}

	for i, elem := range val.AsValueSlice() {
		argPath := fmt.Sprintf("%s.arguments[%d]", path, i)
		switch {
		case elem.Type() == cty.String:
			tool.Arguments = append(tool.Arguments, config.Arg(elem.AsString()))
		case elem.Type().IsObjectType() || elem.Type().IsMapType():
			pattern, collection, err := patternArgument(elem)
			if err != nil {
				return nil, builderr.Configf(argPath, "%s", err)
			}
			tool.Arguments = append(tool.Arguments, config.Expand(pattern, collection))
		default:
			return nil, builderr.Configf(argPath, "must be a string or an object with pattern and collection")
		}
	}
	return tool, nil
}

func patternArgument(v cty.Value) (string, string, error) {
	attrs := v.AsValueMap()
	pattern, ok := attrs["pattern"]
	if !ok || pattern.Type() != cty.String || pattern.IsNull() {
		return "", "", fmt.Errorf("pattern argument needs a string 'pattern'")
	}
	collection, ok := attrs["collection"]
	if !ok || collection.Type() != cty.String || collection.IsNull() {
		return "", "", fmt.Errorf("pattern argument needs a string 'collection'")
	}
	return pattern.AsString(), collection.AsString(), nil
}

// translateTable converts rule blocks into a matcher table. A rule without
// a values attribute keeps a nil value list so validation can report it.
func (l *Loader) translateTable(ctx context.Context, name, mode string, rules []*ruleBlock, fallback matcher.Mode) (*matcher.Table, error) {
	parsed, err := matcher.ParseMode(mode, fallback)
	if err != nil {
		return nil, builderr.Configf(name+".mode", "%s", err)
	}
	table := matcher.NewTable(name, parsed)
	for _, r := range rules {
		rule := matcher.Rule{Key: r.Key}
		if isExprDefined(ctx, r.Values, "values") {
			val, diags := r.Values.Value(nil)
			if diags.HasErrors() {
				return nil, builderr.Configf(name, "rule '%s': %s", r.Key, diags.Error())
			}
			values, err := config.AsStrings(val)
			if err != nil {
				return nil, builderr.Configf(name, "rule '%s': %s", r.Key, err)
			}
			rule.Values = values
		}
		table.Rules = append(table.Rules, rule)
	}
	ctxlog.FromContext(ctx).Debug("Translated rule table.", "table", name, "mode", parsed.String(), "rules", len(table.Rules))
	return table, nil
}

func translateEnv(e *envBlock) (config.EnvVar, error) {
	val, diags := e.Value.Value(nil)
	if diags.HasErrors() {
		return config.EnvVar{}, builderr.Configf("environment."+e.Name, "%s", diags.Error())
	}
	values, err := config.AsStrings(val)
	if err != nil {
		return config.EnvVar{}, builderr.Configf("environment."+e.Name, "%s", err)
	}
	return config.EnvVar{Name: e.Name, Values: values}, nil
}

// translateVars evaluates every attribute of a vars block. Later files
// and blocks override earlier names.
func translateVars(body hcl.Body, m *config.Model) error {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return builderr.Configf("vars", "%s", diags.Error())
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		val, diags := attrs[name].Expr.Value(nil)
		if diags.HasErrors() {
			return builderr.Configf("vars."+name, "%s", diags.Error())
		}
		m.Vars[name] = val
	}
	return nil
}
