package orchestrator

import (
	"context"

	"github.com/vk/unitgrid/internal/codegen"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/results"
	"github.com/vk/unitgrid/internal/shell"
)

// Invoker runs the external build steps.
type Invoker interface {
	CompileCommand(ctx context.Context, step model.CompileStep) (string, error)
	Compile(ctx context.Context, step model.CompileStep) (*shell.Outcome, error)
	Link(ctx context.Context, step model.LinkStep) (*shell.Outcome, error)
	Preprocess(ctx context.Context, step model.PreprocessStep) (*shell.Outcome, error)
	Execute(ctx context.Context, step model.ExecStep) (*shell.Outcome, error)
}

// Extractor reads build information out of test sources.
type Extractor interface {
	Directives(ctx context.Context, path string) (model.Directives, error)
	Context(ctx context.Context, path string) (*codegen.Context, error)
}

// MockGenerator writes the mock module for one header.
type MockGenerator interface {
	Generate(ctx context.Context, mock model.Mock) error
}

// RunnerGenerator writes the runner source of one test.
type RunnerGenerator interface {
	Generate(ctx context.Context, in codegen.RunnerInput) error
}

// Notifier receives lifecycle events. An error from PreBuild aborts the
// run; errors from the per-test hooks are isolated to that test.
type Notifier interface {
	PreBuild(ctx context.Context, tests []string) error
	PreTest(ctx context.Context, t *model.Testable) error
	PostTest(ctx context.Context, t *model.Testable, r *results.Result) error
	PostBuild(ctx context.Context, summary *results.Summary) error
}

// Fingerprinter records the configuration a run was built with.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, snap *config.Snapshot) error
}

type nopNotifier struct{}

func (nopNotifier) PreBuild(context.Context, []string) error                         { return nil }
func (nopNotifier) PreTest(context.Context, *model.Testable) error                   { return nil }
func (nopNotifier) PostTest(context.Context, *model.Testable, *results.Result) error { return nil }
func (nopNotifier) PostBuild(context.Context, *results.Summary) error                { return nil }
