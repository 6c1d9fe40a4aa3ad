package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/codegen"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/finder"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/objcache"
	"github.com/vk/unitgrid/internal/parallel"
	"github.com/vk/unitgrid/internal/results"
)

// Stage names, as reported in StageErrors and logs.
const (
	StagePaths      = "path_preparation"
	StageDirectives = "directive_extraction"
	StageResolve    = "context_resolution"
	StageExtract    = "context_extraction"
	StagePlan       = "planning"
	StageHeaders    = "header_preprocessing"
	StageMocks      = "mock_generation"
	StagePreprocess = "test_preprocessing"
	StageRunners    = "runner_generation"
	StageArtifacts  = "artifact_resolution"
	StageCompile    = "compilation"
	StageLink       = "linking"
	StageExecute    = "execution"
)

// Options are the collaborators and settings of an Orchestrator. Model,
// Snapshot, Files and Invoker are required; the code generators default to
// the codegen package and the Notifier to a no-op.
type Options struct {
	// Root is the project directory. Relative configured paths resolve
	// against it.
	Root         string
	Model        *config.Model
	Snapshot     *config.Snapshot
	Files        *finder.Collections
	Invoker      Invoker
	Extractor    Extractor
	Mocks        MockGenerator
	Runners      RunnerGenerator
	Notifier     Notifier
	Fingerprints Fingerprinter
	// BuildOnly stops the run after linking.
	BuildOnly bool
}

// Orchestrator drives test files through the build pipeline.
type Orchestrator struct {
	opts    Options
	model   *config.Model
	snap    *config.Snapshot
	layout  Layout
	index   *finder.Index
	compile *parallel.Executor
	test    *parallel.Executor

	// tests is written only by the controller, between stages.
	tests map[string]*model.Testable
	keys  []string
}

// New validates the options and returns an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Model == nil:
		return nil, errors.New("orchestrator requires a configuration model")
	case opts.Snapshot == nil:
		return nil, errors.New("orchestrator requires a configuration snapshot")
	case opts.Files == nil:
		return nil, errors.New("orchestrator requires discovered file collections")
	case opts.Invoker == nil:
		return nil, errors.New("orchestrator requires a build-step invoker")
	}
	if opts.Extractor == nil {
		opts.Extractor = codegen.Extractor{}
	}
	if opts.Mocks == nil {
		opts.Mocks = codegen.MockGenerator{}
	}
	if opts.Runners == nil {
		opts.Runners = codegen.RunnerGenerator{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}

	f := opts.Files
	return &Orchestrator{
		opts:    opts,
		model:   opts.Model,
		snap:    opts.Snapshot,
		layout:  NewLayout(opts.Root, opts.Model, opts.Snapshot.Context()),
		index:   finder.NewIndex(f.Sources, f.Headers, f.Assembly, f.Support, f.Tests),
		compile: parallel.FromBudget(opts.Model.Project.CompileThreads),
		test:    parallel.FromBudget(opts.Model.Project.TestThreads),
	}, nil
}

// Layout returns the output layout of the orchestrator's build context.
func (o *Orchestrator) Layout() Layout { return o.layout }

// Run builds and, unless BuildOnly is set, executes the given test files.
// An empty list runs every discovered test. The returned error is a
// StageError for any fatal failure; per-test execution failures are
// recorded in the summary instead.
func (o *Orchestrator) Run(ctx context.Context, testFiles []string) (*results.Summary, error) {
	logger := ctxlog.FromContext(ctx)
	if len(testFiles) == 0 {
		testFiles = o.opts.Files.Tests
	}
	if err := o.load(testFiles); err != nil {
		return nil, err
	}
	logger.Info("Starting test build.",
		"context", o.snap.Context(),
		"tests", len(o.keys),
		"compile_workers", o.compile.Workers(),
		"test_workers", o.test.Workers(),
	)

	if err := o.opts.Notifier.PreBuild(ctx, o.keys); err != nil {
		return nil, fmt.Errorf("pre-build hook failed: %w", err)
	}

	steps := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{StagePaths, o.preparePaths},
		{StageDirectives, o.extractDirectives},
		{StageResolve, o.resolveContext},
		{StageExtract, o.extractContext},
		{StagePlan, o.plan},
		{StageHeaders, o.preprocessHeaders},
		{StageMocks, o.generateMocks},
		{StagePreprocess, o.preprocessTests},
		{StageRunners, o.generateRunners},
		{StageArtifacts, o.resolveArtifacts},
		{StageCompile, o.compileObjects},
		{StageLink, o.linkExecutables},
	}
	for _, s := range steps {
		logger.Debug("Entering stage.", "stage", s.name)
		if err := s.run(ctx); err != nil {
			logger.Error("Stage failed.", "stage", s.name, "error", err)
			return nil, err
		}
	}

	summary := &results.Summary{BuildOnly: o.opts.BuildOnly}
	if !o.opts.BuildOnly {
		o.execute(ctx, summary)
	}
	summary.Sort()

	if o.opts.Fingerprints != nil {
		if err := o.opts.Fingerprints.Fingerprint(ctx, o.snap); err != nil {
			return summary, fmt.Errorf("failed to record configuration fingerprint: %w", err)
		}
	}
	if err := o.opts.Notifier.PostBuild(ctx, summary); err != nil {
		return summary, fmt.Errorf("post-build hook failed: %w", err)
	}
	logger.Info("Test build finished.", "tests", len(o.keys), "failed", summary.Failed())
	return summary, nil
}

// Testable returns the build state of a test after Run.
func (o *Orchestrator) Testable(key string) (*model.Testable, bool) {
	t, ok := o.tests[key]
	return t, ok
}

func (o *Orchestrator) load(files []string) error {
	o.tests = make(map[string]*model.Testable, len(files))
	o.keys = o.keys[:0]
	for _, f := range files {
		key := model.KeyFor(f)
		if prior, ok := o.tests[key]; ok {
			if filepath.Clean(prior.Filepath) == filepath.Clean(f) {
				continue
			}
			return &builderr.StageError{Stage: StagePaths, Item: key, Err: &builderr.BuildGraphError{
				Test: key,
				File: f,
				Msg:  fmt.Sprintf("test name is also used by '%s'", prior.Filepath),
			}}
		}
		o.tests[key] = &model.Testable{Key: key, Filepath: f}
		o.keys = append(o.keys, key)
	}
	sort.Strings(o.keys)
	return nil
}

// eachTest runs fn over a copy of every Testable and stores the copies once
// the stage has joined. Nothing is stored when any item fails.
func (o *Orchestrator) eachTest(ctx context.Context, stage string, pool *parallel.Executor, fn func(ctx context.Context, t *model.Testable) error) error {
	logger := ctxlog.FromContext(ctx)
	items := o.testables()
	logger.Info("Running stage.", "stage", stage, "items", len(items))

	updated, err := parallel.Map(ctx, pool, items, func(ctx context.Context, t *model.Testable) (*model.Testable, error) {
		next := t.Clone()
		if err := fn(ctxlog.With(ctx, "stage", stage), next); err != nil {
			return nil, &builderr.StageError{Stage: stage, Item: t.Key, Err: err}
		}
		return next, nil
	})
	if err != nil {
		return err
	}
	for _, t := range updated {
		o.tests[t.Key] = t
	}
	logger.Debug("Stage finished.", "stage", stage)
	return nil
}

// eachItem runs fn over a flattened work list. Failures are wrapped with
// the stage name and the item's label.
func eachItem[T any](ctx context.Context, stage string, pool *parallel.Executor, items []T, label func(T) string, fn func(ctx context.Context, item T) error) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Running stage.", "stage", stage, "items", len(items))
	err := parallel.Each(ctx, pool, items, func(ctx context.Context, item T) error {
		if err := fn(ctxlog.With(ctx, "stage", stage), item); err != nil {
			return &builderr.StageError{Stage: stage, Item: label(item), Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Debug("Stage finished.", "stage", stage)
	return nil
}

func (o *Orchestrator) testables() []*model.Testable {
	out := make([]*model.Testable, len(o.keys))
	for i, k := range o.keys {
		out[i] = o.tests[k]
	}
	return out
}

// abs resolves a configured path against the project root.
func (o *Orchestrator) abs(path string) string {
	if path == "" || filepath.IsAbs(path) || o.opts.Root == "" {
		return path
	}
	return filepath.Join(o.opts.Root, path)
}

func (o *Orchestrator) preprocessing() bool {
	return o.model.Project.UseTestPreprocessor
}

func (o *Orchestrator) objectState(ctx context.Context) *objcache.State {
	return objcache.Load(ctx, o.layout.ObjectState())
}
