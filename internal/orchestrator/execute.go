package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/parallel"
	"github.com/vk/unitgrid/internal/results"
)

// execute runs every test executable. A test that cannot be run, or whose
// hooks fail, is recorded in the summary and does not affect the others. A
// test that cannot be started still gets a failing result file.
func (o *Orchestrator) execute(ctx context.Context, summary *results.Summary) {
	logger := ctxlog.FromContext(ctx)
	items := o.testables()
	logger.Info("Running stage.", "stage", StageExecute, "items", len(items))

	outcomes := parallel.Collect(ctx, o.test, items, o.runTest)
	for i, oc := range outcomes {
		key := items[i].Key
		if oc.Err != nil {
			logger.Warn("Test could not be executed.", "test", key, "error", oc.Err)
			summary.AddError(key, oc.Err)
			continue
		}
		summary.Add(oc.Value)
	}
	logger.Debug("Stage finished.", "stage", StageExecute)
}

func (o *Orchestrator) runTest(ctx context.Context, t *model.Testable) (*results.Result, error) {
	logger := ctxlog.FromContext(ctx)
	if err := o.opts.Notifier.PreTest(ctx, t); err != nil {
		return nil, fmt.Errorf("pre-test hook failed: %w", err)
	}

	out, err := o.opts.Invoker.Execute(ctx, model.ExecStep{Test: t.Key, Executable: t.Executable})
	if err != nil {
		if _, werr := results.Write(results.Unrunnable(t.Key, t.Filepath, err), t.ResultPass, t.ResultFail); werr != nil {
			return nil, errors.Join(err, werr)
		}
		return nil, err
	}
	r := results.Parse(t.Key, t.Filepath, out)
	if r.Crashed {
		logger.Warn("Test executable terminated abnormally.", "test", t.Key, "exitStatus", out.ExitStatus, "signaled", out.Signaled)
	}
	path, err := results.Write(r, t.ResultPass, t.ResultFail)
	if err != nil {
		return nil, err
	}
	logger.Debug("Recorded test result.", "test", t.Key, "path", path, "passed", r.Passed())

	if err := o.opts.Notifier.PostTest(ctx, t, r); err != nil {
		return nil, fmt.Errorf("post-test hook failed: %w", err)
	}
	return r, nil
}
