package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/finder"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/objcache"
	"github.com/vk/unitgrid/internal/parallel"
)

// resolveArtifacts computes the build set of each test: the test itself,
// its runner and mocks, directive sources, the sources behind its included
// headers, the framework runtimes and the support sources. Every linkable
// source gets an object path.
func (o *Orchestrator) resolveArtifacts(ctx context.Context) error {
	ext := o.model.Extensions
	framework := o.frameworkSources()

	return o.eachTest(ctx, StageArtifacts, o.compile, func(ctx context.Context, t *model.Testable) error {
		set := newSourceSet()
		set.add(model.Source{Path: t.CompileInput(), Role: model.RoleTest})
		set.add(model.Source{Path: t.RunnerSource, Role: model.RoleRunner})
		for _, m := range t.Mocks {
			set.add(model.Source{Path: m.Source, Role: model.RoleMock})
		}
		for _, s := range t.Directives.Resolved {
			set.add(s)
		}

		implicit, err := o.includedSources(ctx, t)
		if err != nil {
			return err
		}
		for _, p := range implicit {
			set.add(model.Source{Path: p, Role: model.RoleSource})
		}

		for _, p := range framework {
			set.add(model.Source{Path: p, Role: model.RoleFramework})
		}
		for _, p := range o.opts.Files.Support {
			set.add(model.Source{Path: p, Role: model.RoleSupport})
		}
		for _, name := range o.model.Matcher(config.MatcherSupport).Match(ctx, t.Filepath) {
			p, err := o.index.Locate(ctx, t.Key, name, t.Filepath, finder.PolicyError)
			if err != nil {
				return err
			}
			set.add(model.Source{Path: p, Role: model.RoleSupport})
		}

		t.Sources = set.list
		t.Objects = nil
		objects := make(map[string]string)
		for i := range t.Sources {
			s := &t.Sources[i]
			if s.NoLink {
				continue
			}
			s.Object = filepath.Join(t.ObjectDir, model.KeyFor(s.Path)+ext.Object)
			if other, ok := objects[s.Object]; ok {
				return &builderr.BuildGraphError{
					Test: t.Key,
					File: s.Path,
					Msg:  fmt.Sprintf("object name collides with '%s'", other),
				}
			}
			objects[s.Object] = s.Path
			t.Objects = append(t.Objects, s.Object)
		}
		t.Executable = filepath.Join(t.ObjectDir, t.Key+ext.Executable)
		return nil
	})
}

// includedSources finds the source, and with assembly enabled the assembly
// file, behind each plain header the test includes. Mocked headers and
// headers without a counterpart are skipped.
func (o *Orchestrator) includedSources(ctx context.Context, t *model.Testable) ([]string, error) {
	ext := o.model.Extensions
	mocked := make(map[string]bool, len(t.Mocks))
	for _, m := range t.Mocks {
		mocked[filepath.Base(m.Header)] = true
	}

	var out []string
	for _, inc := range t.Includes {
		base := filepath.Base(inc)
		if !strings.HasSuffix(inc, ext.Header) || strings.HasPrefix(base, o.model.Project.MockPrefix) || mocked[base] {
			continue
		}
		stem := strings.TrimSuffix(inc, ext.Header)
		names := []string{stem + ext.Source}
		if o.model.Project.UseAssembly && ext.Assembly != "" {
			names = append(names, stem+ext.Assembly)
		}
		for _, name := range names {
			p, err := o.index.Locate(ctx, t.Key, name, t.Filepath, finder.PolicyIgnore)
			if err != nil {
				return nil, err
			}
			if p != "" && p != t.Filepath {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// frameworkSources are the test framework runtimes every test links.
func (o *Orchestrator) frameworkSources() []string {
	v := o.model.Vendor
	srcs := []string{o.abs(filepath.Join(v.Unity, "unity.c"))}
	if o.model.Project.UseMocks {
		srcs = append(srcs, o.abs(filepath.Join(v.CMock, "cmock.c")))
	}
	if o.model.Project.UseExceptions {
		srcs = append(srcs, o.abs(filepath.Join(v.CException, "CException.c")))
	}
	return srcs
}

type sourceSet struct {
	seen map[string]bool
	list []model.Source
}

func newSourceSet() *sourceSet {
	return &sourceSet{seen: make(map[string]bool)}
}

func (s *sourceSet) add(src model.Source) {
	key := filepath.Clean(src.Path)
	if src.Path == "" || s.seen[key] {
		return
	}
	s.seen[key] = true
	s.list = append(s.list, src)
}

// compiled is what one compile job reports back to the controller.
type compiled struct {
	object  string
	digest  string
	skipped bool
}

// compileObjects compiles every object of every test across one pool.
// Objects whose inputs are unchanged since they were last built are
// skipped.
func (o *Orchestrator) compileObjects(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	steps := o.compileSteps()
	state := o.objectState(ctx)
	logger.Info("Running stage.", "stage", StageCompile, "items", len(steps))

	done, err := parallel.Map(ctx, o.compile, steps, func(ctx context.Context, step model.CompileStep) (compiled, error) {
		item := step.Test + "/" + filepath.Base(step.Source)
		line, err := o.opts.Invoker.CompileCommand(ctx, step)
		if err != nil {
			return compiled{}, &builderr.StageError{Stage: StageCompile, Item: item, Err: err}
		}
		if digest, err := objcache.Digest(line, step.Source, step.DepFile); err == nil && state.UpToDate(step.Object, digest) {
			ctxlog.FromContext(ctx).Debug("Object is up to date.", "test", step.Test, "object", step.Object)
			return compiled{object: step.Object, digest: digest, skipped: true}, nil
		}
		if _, err := o.opts.Invoker.Compile(ctx, step); err != nil {
			return compiled{}, &builderr.StageError{Stage: StageCompile, Item: item, Err: err}
		}
		digest, err := objcache.Digest(line, step.Source, step.DepFile)
		if err != nil {
			return compiled{object: step.Object}, nil
		}
		return compiled{object: step.Object, digest: digest}, nil
	})
	if err != nil {
		return err
	}

	skipped := 0
	for _, c := range done {
		if c.skipped {
			skipped++
		}
		if c.digest != "" {
			state.Record(c.object, c.digest)
		}
	}
	if err := state.Save(ctx); err != nil {
		logger.Warn("Failed to save object cache.", "error", err)
	}
	logger.Debug("Stage finished.", "stage", StageCompile, "compiled", len(done)-skipped, "up_to_date", skipped)
	return nil
}

func (o *Orchestrator) compileSteps() []model.CompileStep {
	ext := o.model.Extensions
	var steps []model.CompileStep
	for _, t := range o.testables() {
		for _, s := range t.Sources {
			if s.NoLink {
				continue
			}
			flags := t.CompileFlags
			if o.model.Project.UseAssembly && ext.Assembly != "" && strings.HasSuffix(s.Path, ext.Assembly) {
				flags = t.AssembleFlags
			}
			steps = append(steps, model.CompileStep{
				Test:        t.Key,
				Source:      s.Path,
				Object:      s.Object,
				DepFile:     strings.TrimSuffix(s.Object, ext.Object) + ext.Dependencies,
				Flags:       flags,
				SearchPaths: t.SearchPaths,
				Defines:     t.Defines,
			})
		}
	}
	return steps
}

// linkExecutables links one executable per test.
func (o *Orchestrator) linkExecutables(ctx context.Context) error {
	return o.eachTest(ctx, StageLink, o.compile, func(ctx context.Context, t *model.Testable) error {
		_, err := o.opts.Invoker.Link(ctx, model.LinkStep{
			Test:       t.Key,
			Objects:    t.Objects,
			Executable: t.Executable,
			Flags:      t.LinkFlags,
		})
		return err
	})
}
