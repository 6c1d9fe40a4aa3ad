package config

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/vk/unitgrid/internal/matcher"
	"github.com/zclconf/go-cty/cty"
)

// Snapshot is the immutable, fully resolved configuration of one build
// context. It is passed explicitly to every component that needs a
// configuration value.
type Snapshot struct {
	context string
	root    cty.Value
	environ map[string]string
}

// Snapshot resolves the model for a build context. environ is the process
// environment in os.Environ form; it is exposed to expressions under `env`
// but is not part of the fingerprinted tree.
func (m *Model) Snapshot(buildContext string, environ []string) *Snapshot {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			env[name] = value
		}
	}

	root := cty.ObjectVal(map[string]cty.Value{
		"context":     cty.StringVal(buildContext),
		"project":     m.projectVal(),
		"paths":       m.pathsVal(),
		"extension":   m.extensionVal(),
		"vendor":      m.vendorVal(),
		"collections": m.collectionsVal(),
		"tools":       m.toolsVal(),
		"flags":       m.flagsVal(),
		"defines":     tablesVal(m.Defines),
		"matchers":    tablesVal(m.Matchers),
		"environment": m.environmentVal(),
		"vars":        objectOrEmpty(m.Vars),
		"plugins":     stringList(m.Plugins),
	})

	return &Snapshot{context: buildContext, root: root, environ: env}
}

// Context returns the build context the snapshot was resolved for.
func (s *Snapshot) Context() string { return s.context }

// Value returns the snapshot's root object.
func (s *Snapshot) Value() cty.Value { return s.root }

// WithEnv returns a copy whose `env` variables are overlaid with vars.
func (s *Snapshot) WithEnv(vars map[string]string) *Snapshot {
	env := make(map[string]string, len(s.environ)+len(vars))
	for k, v := range s.environ {
		env[k] = v
	}
	for k, v := range vars {
		env[k] = v
	}
	return &Snapshot{context: s.context, root: s.root, environ: env}
}

// Lookup resolves a dotted key path such as `collections.paths_include` or
// `vars.opts.0`. The boolean is false when any segment is absent; a present
// value may still be null.
func (s *Snapshot) Lookup(path string) (cty.Value, bool) {
	v := s.root
	if path == "" {
		return v, true
	}
	for _, seg := range strings.Split(path, ".") {
		next, ok := step(v, seg)
		if !ok {
			return cty.NilVal, false
		}
		v = next
	}
	return v, true
}

// Strings resolves path and flattens it into a string list. The boolean is
// false when the path is absent.
func (s *Snapshot) Strings(path string) ([]string, bool, error) {
	v, ok := s.Lookup(path)
	if !ok {
		return nil, false, nil
	}
	out, err := AsStrings(v)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", path, err)
	}
	return out, true, nil
}

// Variables returns the top-level names available to expressions, with the
// process environment under `env`.
func (s *Snapshot) Variables() map[string]cty.Value {
	vars := make(map[string]cty.Value)
	for name, v := range s.root.AsValueMap() {
		vars[name] = v
	}
	env := make(map[string]cty.Value, len(s.environ))
	for k, v := range s.environ {
		env[k] = cty.StringVal(v)
	}
	vars["env"] = cty.ObjectVal(env)
	return vars
}

// Plain converts the snapshot into a tree of Go maps, slices and scalars
// suitable for serialization and structural comparison.
func (s *Snapshot) Plain() map[string]any {
	out, _ := ToPlain(s.root).(map[string]any)
	return out
}

func step(v cty.Value, seg string) (cty.Value, bool) {
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, false
	}
	ty := v.Type()
	switch {
	case ty.IsObjectType():
		if !ty.HasAttribute(seg) {
			return cty.NilVal, false
		}
		return v.GetAttr(seg), true
	case ty.IsMapType():
		key := cty.StringVal(seg)
		if !v.HasIndex(key).True() {
			return cty.NilVal, false
		}
		return v.Index(key), true
	case ty.IsListType() || ty.IsTupleType():
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= v.LengthInt() {
			return cty.NilVal, false
		}
		return v.Index(cty.NumberIntVal(int64(i))), true
	}
	return cty.NilVal, false
}

// AsStrings flattens a scalar or (nested) sequence into strings. Null values
// and objects are errors.
func AsStrings(v cty.Value) ([]string, error) {
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is unknown")
	}
	if v.IsNull() {
		return nil, fmt.Errorf("value is null")
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return []string{v.AsString()}, nil
	case ty == cty.Number:
		return []string{v.AsBigFloat().Text('f', -1)}, nil
	case ty == cty.Bool:
		return []string{strconv.FormatBool(v.True())}, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := []string{}
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			part, err := AsStrings(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, part...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot use %s as a string list", ty.FriendlyName())
}

// ToPlain converts a cty value into Go maps, slices and scalars. Whole
// numbers become int.
func ToPlain(v cty.Value) any {
	if !v.IsKnown() || v.IsNull() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString()
	case ty == cty.Bool:
		return v.True()
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i)
			}
		}
		f, _ := bf.Float64()
		return f
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, elem := it.Element()
			out[k.AsString()] = ToPlain(elem)
		}
		return out
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := []any{}
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			out = append(out, ToPlain(elem))
		}
		return out
	}
	return nil
}

func (m *Model) projectVal() cty.Value {
	p := m.Project
	return cty.ObjectVal(map[string]cty.Value{
		"name":                   cty.StringVal(p.Name),
		"build_root":             cty.StringVal(p.BuildRoot),
		"test_file_prefix":       cty.StringVal(p.TestFilePrefix),
		"mock_prefix":            cty.StringVal(p.MockPrefix),
		"use_mocks":              cty.BoolVal(p.UseMocks),
		"use_test_preprocessor":  cty.BoolVal(p.UseTestPreprocessor),
		"use_exceptions":         cty.BoolVal(p.UseExceptions),
		"use_assembly":           cty.BoolVal(p.UseAssembly),
		"clean_on_config_change": cty.BoolVal(p.CleanOnConfigChange),
		"compile_threads":        cty.StringVal(p.CompileThreads.String()),
		"test_threads":           cty.StringVal(p.TestThreads.String()),
	})
}

func (m *Model) pathsVal() cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"test":      stringList(m.Paths.Test),
		"source":    stringList(m.Paths.Source),
		"include":   stringList(m.Paths.Include),
		"support":   stringList(m.Paths.Support),
		"libraries": stringList(m.Paths.Libraries),
	})
}

func (m *Model) extensionVal() cty.Value {
	e := m.Extensions
	return cty.ObjectVal(map[string]cty.Value{
		"source":       cty.StringVal(e.Source),
		"header":       cty.StringVal(e.Header),
		"assembly":     cty.StringVal(e.Assembly),
		"object":       cty.StringVal(e.Object),
		"executable":   cty.StringVal(e.Executable),
		"dependencies": cty.StringVal(e.Dependencies),
		"testpass":     cty.StringVal(e.TestPass),
		"testfail":     cty.StringVal(e.TestFail),
	})
}

func (m *Model) vendorVal() cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"unity":      cty.StringVal(m.Vendor.Unity),
		"cmock":      cty.StringVal(m.Vendor.CMock),
		"cexception": cty.StringVal(m.Vendor.CException),
	})
}

// VendorPaths lists the framework runtime directories enabled by the
// project's feature toggles.
func (m *Model) VendorPaths() []string {
	dirs := []string{m.Vendor.Unity}
	if m.Project.UseMocks {
		dirs = append(dirs, m.Vendor.CMock)
	}
	if m.Project.UseExceptions {
		dirs = append(dirs, m.Vendor.CException)
	}
	return dirs
}

// collectionsVal exposes the named collections that pattern→collection
// argument elements refer to.
func (m *Model) collectionsVal() cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"paths_test":      stringList(dirsOf(m.Paths.Test)),
		"paths_source":    stringList(dirsOf(m.Paths.Source)),
		"paths_include":   stringList(dirsOf(m.Paths.Include)),
		"paths_support":   stringList(dirsOf(m.Paths.Support)),
		"paths_libraries": stringList(dirsOf(m.Paths.Libraries)),
		"paths_vendor":    stringList(m.VendorPaths()),
		"libraries":       stringList(m.Libraries),
	})
}

func (m *Model) toolsVal() cty.Value {
	tools := make(map[string]cty.Value, len(m.Tools))
	for name, t := range m.Tools {
		args := make([]cty.Value, 0, len(t.Arguments))
		for _, a := range t.Arguments {
			if a.IsCollection() {
				args = append(args, cty.ObjectVal(map[string]cty.Value{
					"pattern":    cty.StringVal(a.Pattern),
					"collection": cty.StringVal(a.Collection),
				}))
				continue
			}
			args = append(args, cty.StringVal(a.Literal))
		}
		redirect := t.StderrRedirect
		if redirect == "" {
			redirect = RedirectNone
		}
		tools[name] = cty.ObjectVal(map[string]cty.Value{
			"executable":      cty.StringVal(t.Executable),
			"stderr_redirect": cty.StringVal(string(redirect)),
			"optional":        cty.BoolVal(t.Optional),
			"arguments":       cty.TupleVal(args),
		})
	}
	return objectOrEmpty(tools)
}

func (m *Model) flagsVal() cty.Value {
	contexts := make(map[string]cty.Value, len(m.Flags))
	for name, ops := range m.Flags {
		contexts[name] = tablesVal(ops)
	}
	return objectOrEmpty(contexts)
}

func (m *Model) environmentVal() cty.Value {
	env := make(map[string]cty.Value, len(m.Environment))
	for _, e := range m.Environment {
		env[e.Name] = cty.StringVal(strings.Join(e.Values, " "))
	}
	return objectOrEmpty(env)
}

func tablesVal(tables map[string]*matcher.Table) cty.Value {
	out := make(map[string]cty.Value, len(tables))
	for name, t := range tables {
		if t == nil {
			continue
		}
		rules := make([]cty.Value, 0, len(t.Rules))
		for _, r := range t.Rules {
			rules = append(rules, cty.ObjectVal(map[string]cty.Value{
				"key":    cty.StringVal(r.Key),
				"values": stringList(r.Values),
			}))
		}
		out[name] = cty.ObjectVal(map[string]cty.Value{
			"mode":  cty.StringVal(t.Mode.String()),
			"rules": cty.TupleVal(rules),
		})
	}
	return objectOrEmpty(out)
}

func stringList(xs []string) cty.Value {
	if len(xs) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(xs))
	for i, x := range xs {
		vals[i] = cty.StringVal(x)
	}
	return cty.ListVal(vals)
}

func objectOrEmpty(m map[string]cty.Value) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(m)
}

// dirsOf strips recursive markers from path specs and drops globs, leaving
// plain directories.
func dirsOf(specs []string) []string {
	out := make([]string, 0, len(specs))
	seen := make(map[string]bool)
	for _, s := range specs {
		s = strings.TrimSuffix(strings.TrimSuffix(s, "/**"), "/")
		if s == "" || strings.ContainsAny(s, "*?[") || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
