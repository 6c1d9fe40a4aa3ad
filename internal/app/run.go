package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/cache"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/finder"
	"github.com/vk/unitgrid/internal/invoker"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/orchestrator"
	"github.com/vk/unitgrid/internal/registry"
	"github.com/vk/unitgrid/internal/results"
	"github.com/vk/unitgrid/internal/shell"
	"github.com/vk/unitgrid/modules/environment"
)

// Run builds and runs the selected tests in the test build context. The
// summary is returned whenever the build got as far as running tests, even
// when an error is also returned.
func (a *App) Run(ctx context.Context) (*results.Summary, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	snap := a.model.Snapshot(config.ContextTest, a.environ)
	env := environment.New(a.model.Environment, snap)
	if a.isolated {
		env.WithSetenv(func(string, string) error { return nil })
	}
	applied, err := env.Apply(ctx)
	if err != nil {
		return nil, builderr.Configf("environment", "%s", err)
	}
	snap = snap.WithEnv(applied)

	reg := registry.New()
	if err := reg.Load(ctx, a.coreModules(env), alwaysOn, a.model.Plugins); err != nil {
		return nil, err
	}

	files, err := finder.Discover(a.root, a.model)
	if err != nil {
		return nil, fmt.Errorf("failed to collect project files: %w", err)
	}
	a.logger.Info("Collected project files.",
		"tests", len(files.Tests),
		"sources", len(files.Sources),
		"headers", len(files.Headers),
		"support", len(files.Support),
	)

	selected, err := a.selectTests(files.Tests)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		a.logger.Warn("No test files found, nothing to build.")
		return &results.Summary{BuildOnly: a.config.BuildOnly}, nil
	}

	inv := a.invoker
	if inv == nil {
		tc := invoker.New(a.model, snap, &shell.Runner{Dir: a.root, Env: a.processEnv(applied)})
		if err := tc.ValidateTools(ctx, a.model.RequiredTools()...); err != nil {
			return nil, err
		}
		inv = tc
	}

	layout := orchestrator.NewLayout(a.root, a.model, config.ContextTest)
	fingerprints := cache.New(layout.CacheDir())
	if err := a.prepareContext(ctx, layout, fingerprints, snap); err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Root:         a.root,
		Model:        a.model,
		Snapshot:     snap,
		Files:        files,
		Invoker:      inv,
		Notifier:     reg,
		Fingerprints: fingerprints,
		BuildOnly:    a.config.BuildOnly,
	})
	if err != nil {
		return nil, err
	}

	summary, err := orch.Run(ctx, selected)
	if summary != nil {
		totals := summary.Totals()
		a.logger.Info("Test build finished.",
			"tested", totals.Tests,
			"passed", totals.Passed,
			"failed", totals.Failures,
			"ignored", totals.Ignored,
			"errors", len(summary.Errors),
		)
	}
	a.logger.Debug("App.Run method finished.")
	return summary, err
}

// prepareContext compares the configuration with the previous run's and,
// when it changed or a clean was requested, removes the build context's
// artifacts if the project asks for it.
func (a *App) prepareContext(ctx context.Context, layout orchestrator.Layout, fingerprints *cache.Cache, snap *config.Snapshot) error {
	changed, err := fingerprints.Changed(ctx, snap)
	if err != nil {
		return err
	}
	switch {
	case a.config.Clean:
		a.logger.Info("Cleaning build context.", "context", snap.Context(), "dir", layout.ContextDir())
	case changed && a.model.Project.CleanOnConfigChange:
		a.logger.Info("Configuration changed, cleaning build context.", "context", snap.Context(), "dir", layout.ContextDir())
	case changed:
		a.logger.Info("Configuration changed since last run, keeping artifacts.", "context", snap.Context())
		return nil
	default:
		return nil
	}
	if err := os.RemoveAll(layout.ContextDir()); err != nil {
		return fmt.Errorf("failed to clean build context: %w", err)
	}
	return nil
}

// selectTests narrows the discovered tests to the configured selection.
// A name matches a test by key (`test_uart`), by file name or by path.
func (a *App) selectTests(tests []string) ([]string, error) {
	if len(a.config.Tests) == 0 {
		return tests, nil
	}
	byKey := make(map[string]string, len(tests))
	byPath := make(map[string]string, len(tests))
	for _, t := range tests {
		byKey[model.KeyFor(t)] = t
		byPath[a.absolute(t)] = t
	}

	var selected []string
	seen := make(map[string]bool)
	for _, name := range a.config.Tests {
		match, ok := byPath[a.absolute(name)]
		if !ok {
			match, ok = byKey[model.KeyFor(name)]
		}
		if !ok {
			return nil, builderr.Configf("tests", "no test file matches '%s', available: %v", name, sortedKeys(byKey))
		}
		if !seen[match] {
			seen[match] = true
			selected = append(selected, match)
		}
	}
	a.logger.Debug("Selected tests.", "requested", len(a.config.Tests), "selected", len(selected))
	return selected, nil
}

func (a *App) absolute(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(a.root, path)
}

// processEnv returns the environment tool processes run with. Nil inherits
// the current process, which already carries the applied entries.
func (a *App) processEnv(applied map[string]string) []string {
	if !a.isolated {
		return nil
	}
	env := make([]string, 0, len(a.environ)+len(applied))
	for _, kv := range a.environ {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := applied[name]; !ok {
			env = append(env, kv)
		}
	}
	for _, name := range sortedKeys(applied) {
		env = append(env, name+"="+applied[name])
	}
	return env
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
