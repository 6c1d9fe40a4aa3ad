// Package environment exports the configured environment entries to the
// process before anything is built.
package environment

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/expr"
	"github.com/vk/unitgrid/internal/registry"
)

// Name is the plugin name under which the module is registered.
const Name = "environment"

// Module implements the registry.Module interface for this package.
type Module struct {
	entries  []config.EnvVar
	snapshot *config.Snapshot
	setenv   func(key, value string) error

	once    sync.Once
	applied map[string]string
	err     error
}

// New returns a module that applies entries. Markers in the values are
// evaluated against snap, with the entries applied so far visible under
// `env`.
func New(entries []config.EnvVar, snap *config.Snapshot) *Module {
	return &Module{entries: entries, snapshot: snap, setenv: os.Setenv}
}

// WithSetenv replaces os.Setenv, for callers that keep the build
// environment out of the current process.
func (m *Module) WithSetenv(fn func(key, value string) error) *Module {
	m.setenv = fn
	return m
}

// Apply sets every entry in order and returns the values it set. Only the
// first call does any work.
func (m *Module) Apply(ctx context.Context) (map[string]string, error) {
	m.once.Do(func() {
		m.applied, m.err = m.apply(ctx)
	})
	return m.applied, m.err
}

func (m *Module) apply(ctx context.Context) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)
	applied := make(map[string]string, len(m.entries))

	for _, e := range m.entries {
		eval := expr.New(m.snapshot.WithEnv(applied))
		var parts []string
		for _, v := range e.Values {
			expanded, err := eval.Expand(v)
			if err != nil {
				return nil, fmt.Errorf("environment '%s': %w", e.Name, err)
			}
			for _, s := range expanded {
				parts = append(parts, expr.Unescape(s))
			}
		}
		value := strings.Join(parts, " ")
		if err := m.setenv(e.Name, value); err != nil {
			return nil, fmt.Errorf("failed to set environment '%s': %w", e.Name, err)
		}
		applied[e.Name] = value
		logger.Debug("Set environment variable.", "name", e.Name)
	}

	if len(applied) > 0 {
		logger.Info("Applied build environment.", "count", len(applied))
	}
	return applied, nil
}

// Register registers the module's PreBuild hook.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHook(Name, &registry.RegisteredHook{
		PreBuild: func(ctx context.Context, tests []string) error {
			_, err := m.Apply(ctx)
			return err
		},
	})
}
