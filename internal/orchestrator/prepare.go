package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/finder"
	"github.com/vk/unitgrid/internal/model"
)

// preparePaths allocates each test's output directories and removes result
// files left over from an earlier run.
func (o *Orchestrator) preparePaths(ctx context.Context) error {
	ext := o.model.Extensions
	return o.eachTest(ctx, StagePaths, o.compile, func(ctx context.Context, t *model.Testable) error {
		t.BuildDir = o.layout.ContextDir()
		t.ObjectDir = o.layout.ObjectDir(t.Key)
		t.RunnerDir = o.layout.RunnerDir()
		t.ResultsDir = o.layout.ResultsDir()
		t.ResultPass = filepath.Join(t.ResultsDir, t.Key+ext.TestPass)
		t.ResultFail = filepath.Join(t.ResultsDir, t.Key+ext.TestFail)

		dirs := []string{t.ObjectDir, t.RunnerDir, t.ResultsDir}
		if o.model.Project.UseMocks {
			t.MockDir = o.layout.MockDir(t.Key)
			dirs = append(dirs, t.MockDir)
		}
		if o.preprocessing() {
			t.PreprocessDir = o.layout.PreprocessDir(t.Key)
			dirs = append(dirs, t.PreprocessDir)
		}
		for _, dir := range dirs {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create '%s': %w", dir, err)
			}
		}
		for _, stale := range []string{t.ResultPass, t.ResultFail} {
			if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove stale result '%s': %w", stale, err)
			}
		}
		return nil
	})
}

// extractDirectives reads each test's build directives and locates every
// file and directory they name.
func (o *Orchestrator) extractDirectives(ctx context.Context) error {
	return o.eachTest(ctx, StageDirectives, o.compile, func(ctx context.Context, t *model.Testable) error {
		d, err := o.opts.Extractor.Directives(ctx, t.Filepath)
		if err != nil {
			return err
		}
		for _, name := range d.Sources {
			located, err := o.index.Locate(ctx, t.Key, name, t.Filepath, finder.PolicyError)
			if err != nil {
				return err
			}
			d.Resolved = append(d.Resolved, model.Source{
				Path:   located,
				Role:   model.RoleSource,
				NoLink: o.isHeader(located),
			})
		}
		for i, dir := range d.IncludePaths {
			full := o.abs(dir)
			if info, err := os.Stat(full); err != nil || !info.IsDir() {
				return &builderr.BuildGraphError{Test: t.Key, File: dir, Msg: "include path not found"}
			}
			d.IncludePaths[i] = full
		}
		t.Directives = d
		return nil
	})
}

// resolveContext looks up the search paths, flags and defines of each test
// for the snapshot's build context.
func (o *Orchestrator) resolveContext(ctx context.Context) error {
	base, err := o.baseSearchPaths()
	if err != nil {
		return &builderr.StageError{Stage: StageResolve, Err: err}
	}
	buildContext := o.snap.Context()
	m := o.model

	return o.eachTest(ctx, StageResolve, o.compile, func(ctx context.Context, t *model.Testable) error {
		paths := []string{filepath.Dir(t.Filepath)}
		paths = append(paths, t.Directives.IncludePaths...)
		if t.MockDir != "" {
			paths = append(paths, t.MockDir)
		}
		for _, p := range m.Matcher(config.MatcherIncludePaths).Match(ctx, t.Filepath) {
			paths = append(paths, o.abs(p))
		}
		t.SearchPaths = dedupe(append(paths, base...))

		t.CompileFlags = m.FlagTable(buildContext, config.OpCompile).Match(ctx, t.Filepath)
		t.AssembleFlags = m.FlagTable(buildContext, config.OpAssemble).Match(ctx, t.Filepath)
		t.LinkFlags = m.FlagTable(buildContext, config.OpLink).Match(ctx, t.Filepath)

		t.Defines = append(m.DefineTable(buildContext).Match(ctx, t.Filepath),
			m.Matcher(config.MatcherDefines).Match(ctx, t.Filepath)...)
		if table := m.DefineTable(config.ContextPreprocess); table != nil {
			t.PreprocessDefines = table.Match(ctx, t.Filepath)
		} else {
			t.PreprocessDefines = append([]string(nil), t.Defines...)
		}
		return nil
	})
}

// baseSearchPaths are the directories every test searches after its own:
// configured include, support and source directories, the directories of
// every discovered header, and the enabled framework runtimes.
func (o *Orchestrator) baseSearchPaths() ([]string, error) {
	var out []string
	for _, coll := range []string{"paths_include", "paths_support", "paths_source"} {
		dirs, ok, err := o.snap.Strings("collections." + coll)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, builderr.Configf("collections."+coll, "collection is not defined")
		}
		for _, d := range dirs {
			out = append(out, o.abs(d))
		}
	}
	for _, h := range o.opts.Files.Headers {
		out = append(out, filepath.Dir(h))
	}
	for _, d := range o.model.VendorPaths() {
		out = append(out, o.abs(d))
	}
	return dedupe(out), nil
}

// extractContext reads includes and test cases from each test source.
func (o *Orchestrator) extractContext(ctx context.Context) error {
	return o.eachTest(ctx, StageExtract, o.compile, func(ctx context.Context, t *model.Testable) error {
		c, err := o.opts.Extractor.Context(ctx, t.Filepath)
		if err != nil {
			return err
		}
		if len(c.TestCases) == 0 {
			ctxlog.FromContext(ctx).Warn("Test file declares no test cases.", "test", t.Key, "file", t.Filepath)
		}
		t.Includes = c.Includes
		t.TestCases = c.TestCases
		return nil
	})
}

// plan names each test's runner and maps every mock include to the header
// it stands in for.
func (o *Orchestrator) plan(ctx context.Context) error {
	ext := o.model.Extensions
	prefix := o.model.Project.MockPrefix

	return o.eachTest(ctx, StagePlan, o.compile, func(ctx context.Context, t *model.Testable) error {
		t.RunnerSource = filepath.Join(t.RunnerDir, t.Key+"_runner"+ext.Source)
		t.Mocks = nil
		if !o.model.Project.UseMocks {
			return nil
		}

		seen := make(map[string]bool)
		for _, inc := range t.Includes {
			base := path.Base(inc)
			if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, ext.Header) {
				continue
			}
			name := strings.TrimSuffix(base, ext.Header)
			if seen[name] {
				continue
			}
			seen[name] = true

			headerName := strings.TrimPrefix(name, prefix) + ext.Header
			if dir := path.Dir(inc); dir != "." {
				headerName = path.Join(dir, headerName)
			}
			header, err := o.index.Locate(ctx, t.Key, headerName, t.Filepath, finder.PolicyError)
			if err != nil {
				return err
			}

			input := header
			if o.preprocessing() {
				input = filepath.Join(t.PreprocessDir, filepath.Base(header))
			}
			t.Mocks = append(t.Mocks, model.Mock{
				Name:      name,
				Header:    header,
				Input:     input,
				Source:    filepath.Join(t.MockDir, name+ext.Source),
				OutHeader: filepath.Join(t.MockDir, name+ext.Header),
			})
		}
		return nil
	})
}

func (o *Orchestrator) isHeader(p string) bool {
	return o.model.Extensions.Header != "" && strings.HasSuffix(p, o.model.Extensions.Header)
}

func dedupe(xs []string) []string {
	seen := make(map[string]bool, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x == "" || seen[x] {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	return out
}
