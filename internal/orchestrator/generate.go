package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/vk/unitgrid/internal/codegen"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/model"
)

// mockJob is one mock of one test. Mock generation works on the flattened
// list of every test's mocks so all of them share one pool.
type mockJob struct {
	test *model.Testable
	mock model.Mock
}

func (j mockJob) label() string { return j.test.Key + "/" + j.mock.Name }

func (o *Orchestrator) mockJobs() []mockJob {
	var jobs []mockJob
	for _, t := range o.testables() {
		for _, m := range t.Mocks {
			jobs = append(jobs, mockJob{test: t, mock: m})
		}
	}
	return jobs
}

// preprocessHeaders expands the headers that mocks are generated from.
func (o *Orchestrator) preprocessHeaders(ctx context.Context) error {
	if !o.preprocessing() || !o.model.Project.UseMocks {
		ctxlog.FromContext(ctx).Debug("Skipping stage.", "stage", StageHeaders)
		return nil
	}
	return eachItem(ctx, StageHeaders, o.compile, o.mockJobs(), mockJob.label, func(ctx context.Context, j mockJob) error {
		_, err := o.opts.Invoker.Preprocess(ctx, model.PreprocessStep{
			Test:        j.test.Key,
			Source:      j.mock.Header,
			Output:      j.mock.Input,
			Flags:       j.test.CompileFlags,
			SearchPaths: j.test.SearchPaths,
			Defines:     j.test.PreprocessDefines,
		})
		return err
	})
}

// generateMocks writes every mock of every test.
func (o *Orchestrator) generateMocks(ctx context.Context) error {
	if !o.model.Project.UseMocks {
		ctxlog.FromContext(ctx).Debug("Skipping stage.", "stage", StageMocks)
		return nil
	}
	return eachItem(ctx, StageMocks, o.compile, o.mockJobs(), mockJob.label, func(ctx context.Context, j mockJob) error {
		return o.opts.Mocks.Generate(ctx, j.mock)
	})
}

// preprocessTests expands each test file before it is compiled.
func (o *Orchestrator) preprocessTests(ctx context.Context) error {
	if !o.preprocessing() {
		ctxlog.FromContext(ctx).Debug("Skipping stage.", "stage", StagePreprocess)
		return nil
	}
	return o.eachTest(ctx, StagePreprocess, o.compile, func(ctx context.Context, t *model.Testable) error {
		out := filepath.Join(t.PreprocessDir, filepath.Base(t.Filepath))
		_, err := o.opts.Invoker.Preprocess(ctx, model.PreprocessStep{
			Test:        t.Key,
			Source:      t.Filepath,
			Output:      out,
			Flags:       t.CompileFlags,
			SearchPaths: t.SearchPaths,
			Defines:     t.PreprocessDefines,
		})
		if err != nil {
			return err
		}
		t.PreprocessedFile = out
		return nil
	})
}

// generateRunners writes one runner per test.
func (o *Orchestrator) generateRunners(ctx context.Context) error {
	return o.eachTest(ctx, StageRunners, o.compile, func(ctx context.Context, t *model.Testable) error {
		mocks := make([]string, len(t.Mocks))
		for i, m := range t.Mocks {
			mocks[i] = m.Name
		}
		return o.opts.Runners.Generate(ctx, codegen.RunnerInput{
			Test:          t.Key,
			TestFile:      t.Filepath,
			Output:        t.RunnerSource,
			TestCases:     t.TestCases,
			Mocks:         mocks,
			UseExceptions: o.model.Project.UseExceptions,
		})
	})
}
