package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/results"
)

// Module is the interface that all plugin modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered hooks of a single application instance.
// Registration happens before the build starts; dispatch may then run from
// concurrent test workers.
type Registry struct {
	hooks map[string]*RegisteredHook
	order []string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{hooks: make(map[string]*RegisteredHook)}
}

// Hooks returns the names of the registered hooks in registration order.
func (r *Registry) Hooks() []string {
	return append([]string(nil), r.order...)
}

// PreBuild runs every PreBuild hook. The first failure stops the dispatch.
func (r *Registry) PreBuild(ctx context.Context, tests []string) error {
	for _, name := range r.order {
		if fn := r.hooks[name].PreBuild; fn != nil {
			ctxlog.FromContext(ctx).Debug("Running hook.", "hook", name, "event", "pre_build")
			if err := fn(ctx, tests); err != nil {
				return fmt.Errorf("hook '%s': %w", name, err)
			}
		}
	}
	return nil
}

// PreTest runs every PreTest hook for t. The first failure stops the
// dispatch.
func (r *Registry) PreTest(ctx context.Context, t *model.Testable) error {
	for _, name := range r.order {
		if fn := r.hooks[name].PreTest; fn != nil {
			if err := fn(ctx, t); err != nil {
				return fmt.Errorf("hook '%s': %w", name, err)
			}
		}
	}
	return nil
}

// PostTest runs every PostTest hook for t, even after one fails, and
// returns the joined failures.
func (r *Registry) PostTest(ctx context.Context, t *model.Testable, res *results.Result) error {
	var errs []error
	for _, name := range r.order {
		if fn := r.hooks[name].PostTest; fn != nil {
			if err := fn(ctx, t, res); err != nil {
				errs = append(errs, fmt.Errorf("hook '%s': %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// PostBuild runs every PostBuild hook, even after one fails, and returns
// the joined failures.
func (r *Registry) PostBuild(ctx context.Context, summary *results.Summary) error {
	var errs []error
	for _, name := range r.order {
		if fn := r.hooks[name].PostBuild; fn != nil {
			ctxlog.FromContext(ctx).Debug("Running hook.", "hook", name, "event", "post_build")
			if err := fn(ctx, summary); err != nil {
				errs = append(errs, fmt.Errorf("hook '%s': %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
