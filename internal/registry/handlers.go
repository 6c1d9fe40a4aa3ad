package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/results"
)

// RegisteredHook holds the Go functions a module runs on lifecycle events.
// Any of them may be nil.
type RegisteredHook struct {
	PreBuild  func(ctx context.Context, tests []string) error
	PreTest   func(ctx context.Context, t *model.Testable) error
	PostTest  func(ctx context.Context, t *model.Testable, r *results.Result) error
	PostBuild func(ctx context.Context, summary *results.Summary) error
}

// RegisterHook registers a module's lifecycle hooks under a unique name.
func (r *Registry) RegisterHook(name string, hook *RegisteredHook) {
	if _, exists := r.hooks[name]; exists {
		panic(fmt.Sprintf("hook with name '%s' already registered", name))
	}
	slog.Debug("Registering hook.", "name", name)
	r.hooks[name] = hook
	r.order = append(r.order, name)
}
