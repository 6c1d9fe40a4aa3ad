package hclconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/matcher"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file found under paths and layers them over
// config.Defaults in discovery order. A path may be a file or a directory.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	model := config.Defaults()
	parser := hclparse.NewParser()
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, builderr.Configf(file, "failed to parse HCL: %s", diags.Error())
		}
		if err := l.apply(ctx, model, hclFile.Body); err != nil {
			return nil, fmt.Errorf("in %s: %w", file, err)
		}
		model.Files = append(model.Files, file)
	}

	logger.Debug("HCL loading complete.", "files", len(model.Files), "tools", len(model.Tools), "plugins", len(model.Plugins))
	return model, nil
}

// LoadBytes parses a single in-memory file over config.Defaults.
func (l *Loader) LoadBytes(ctx context.Context, name string, src []byte) (*config.Model, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, name)
	if diags.HasErrors() {
		return nil, builderr.Configf(name, "failed to parse HCL: %s", diags.Error())
	}
	model := config.Defaults()
	if err := l.apply(ctx, model, hclFile.Body); err != nil {
		return nil, err
	}
	model.Files = append(model.Files, name)
	return model, nil
}

func (l *Loader) apply(ctx context.Context, m *config.Model, body hcl.Body) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return builderr.Configf("", "failed to decode HCL: %s", diags.Error())
	}

	if root.Project != nil {
		if err := l.translateProject(ctx, root.Project.Body, &m.Project); err != nil {
			return err
		}
	}
	if root.Paths != nil {
		p := pathsBlock(m.Paths)
		if diags := gohcl.DecodeBody(root.Paths.Body, nil, &p); diags.HasErrors() {
			return builderr.Configf("paths", "%s", diags.Error())
		}
		m.Paths = config.Paths(p)
	}
	if root.Extension != nil {
		e := extensionBlock(m.Extensions)
		if diags := gohcl.DecodeBody(root.Extension.Body, nil, &e); diags.HasErrors() {
			return builderr.Configf("extension", "%s", diags.Error())
		}
		m.Extensions = config.Extensions(e)
	}
	if root.Vendor != nil {
		v := vendorBlock(m.Vendor)
		if diags := gohcl.DecodeBody(root.Vendor.Body, nil, &v); diags.HasErrors() {
			return builderr.Configf("vendor", "%s", diags.Error())
		}
		m.Vendor = config.Vendor(v)
	}
	if root.Libraries != nil {
		m.Libraries = root.Libraries
	}
	if root.Plugins != nil {
		m.Plugins = root.Plugins
	}

	for _, t := range root.Tools {
		tool, err := l.translateTool(ctx, t)
		if err != nil {
			return err
		}
		m.Tools[tool.Name] = tool
	}
	for _, f := range root.Flags {
		table, err := l.translateTable(ctx, fmt.Sprintf("flags.%s.%s", f.Context, f.Operation), f.Mode, f.Rules, matcher.FirstMatch)
		if err != nil {
			return err
		}
		if m.Flags[f.Context] == nil {
			m.Flags[f.Context] = make(map[string]*matcher.Table)
		}
		m.Flags[f.Context][f.Operation] = table
	}
	for _, d := range root.Defines {
		table, err := l.translateTable(ctx, "defines."+d.Name, d.Mode, d.Rules, matcher.FirstMatch)
		if err != nil {
			return err
		}
		m.Defines[d.Name] = table
	}
	for _, mt := range root.Matchers {
		table, err := l.translateTable(ctx, "matchers."+mt.Name, mt.Mode, mt.Rules, matcher.Union)
		if err != nil {
			return err
		}
		m.Matchers[mt.Name] = table
	}

	for _, e := range root.Environment {
		env, err := translateEnv(e)
		if err != nil {
			return err
		}
		m.Environment = append(m.Environment, env)
	}
	for _, v := range root.Vars {
		if err := translateVars(v.Body, m); err != nil {
			return err
		}
	}
	return nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found. A file named explicitly is accepted whatever its extension.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
