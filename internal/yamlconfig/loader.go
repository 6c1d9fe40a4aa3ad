package yamlconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/matcher"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load decodes each file over config.Defaults in the order given.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	model := config.Defaults()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := l.apply(model, path, data); err != nil {
			return nil, err
		}
		model.Files = append(model.Files, path)
		logger.Debug("Applied configuration file.", "path", path)
	}

	logger.Debug("YAML loading complete.", "files", len(model.Files), "tools", len(model.Tools), "plugins", len(model.Plugins))
	return model, nil
}

// LoadBytes decodes a single in-memory document over config.Defaults.
// name is used in error messages.
func (l *Loader) LoadBytes(name string, data []byte) (*config.Model, error) {
	model := config.Defaults()
	if err := l.apply(model, name, data); err != nil {
		return nil, err
	}
	model.Files = append(model.Files, name)
	return model, nil
}

func (l *Loader) apply(model *config.Model, path string, data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return builderr.Configf(filepath.Base(path), "invalid YAML: %s", err)
	}
	if len(root.Content) == 0 {
		return nil
	}
	stripSymbols(&root, make(map[*yaml.Node]bool))

	var doc document
	if err := root.Decode(&doc); err != nil {
		return builderr.Configf(filepath.Base(path), "%s", err)
	}
	return doc.merge(model, path)
}

// stripSymbols drops the leading colon of Ruby-style symbol keys.
func stripSymbols(n *yaml.Node, seen map[*yaml.Node]bool) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind == yaml.ScalarNode && len(key.Value) > 1 && strings.HasPrefix(key.Value, ":") {
				key.Value = key.Value[1:]
			}
		}
	}
	for _, child := range n.Content {
		stripSymbols(child, seen)
	}
	stripSymbols(n.Alias, seen)
}

func (d *document) merge(m *config.Model, path string) error {
	if present(&d.Project) {
		p := newProjectDoc(m.Project)
		if err := d.Project.Decode(&p); err != nil {
			return builderr.Configf("project", "%s: %s", path, err)
		}
		p.apply(&m.Project)
	}
	if present(&d.Paths) {
		p := pathsDoc(m.Paths)
		if err := d.Paths.Decode(&p); err != nil {
			return builderr.Configf("paths", "%s: %s", path, err)
		}
		m.Paths = config.Paths(p)
	}
	if present(&d.Extension) {
		e := extensionDoc(m.Extensions)
		if err := d.Extension.Decode(&e); err != nil {
			return builderr.Configf("extension", "%s: %s", path, err)
		}
		m.Extensions = config.Extensions(e)
	}
	if present(&d.Vendor) {
		v := vendorDoc(m.Vendor)
		if err := d.Vendor.Decode(&v); err != nil {
			return builderr.Configf("vendor", "%s: %s", path, err)
		}
		m.Vendor = config.Vendor(v)
	}
	if d.Libraries != nil {
		m.Libraries = d.Libraries
	}

	for name, tool := range d.Tools {
		if tool == nil {
			return builderr.Configf("tools."+name, "tool has no settings")
		}
		m.Tools[name] = tool.descriptor(name)
	}

	for ctxName, ops := range d.Flags {
		if m.Flags[ctxName] == nil {
			m.Flags[ctxName] = make(map[string]*matcher.Table)
		}
		for op, t := range ops {
			m.Flags[ctxName][op] = t.table(fmt.Sprintf("flags.%s.%s", ctxName, op), matcher.FirstMatch)
		}
	}
	for ctxName, t := range d.Defines {
		m.Defines[ctxName] = t.table("defines."+ctxName, matcher.FirstMatch)
	}
	for name, t := range d.Matchers {
		m.Matchers[name] = t.table("matchers."+name, matcher.Union)
	}

	for _, e := range d.Environment {
		m.Environment = append(m.Environment, config.EnvVar(e))
	}
	for name, raw := range d.Vars {
		v, err := toCty(raw)
		if err != nil {
			return builderr.Configf("vars."+name, "%s", err)
		}
		m.Vars[name] = v
	}
	if d.Plugins != nil {
		m.Plugins = d.Plugins.Enabled
	}
	return nil
}
