package registry

import (
	"context"
	"sort"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/ctxlog"
)

// Load registers the modules named by enabled, in that order, from the
// available set. Names listed in always are loaded first whether enabled
// or not. An unknown name is a configuration error and nothing is
// registered.
func (r *Registry) Load(ctx context.Context, available map[string]Module, always []string, enabled []string) error {
	logger := ctxlog.FromContext(ctx)

	names := make([]string, 0, len(always)+len(enabled))
	seen := make(map[string]bool)
	for _, name := range append(append([]string(nil), always...), enabled...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := available[name]; !ok {
			return builderr.Configf("plugins", "unknown plugin '%s', available: %v", name, sortedNames(available))
		}
		names = append(names, name)
	}

	for _, name := range names {
		logger.Debug("Loading plugin.", "plugin", name)
		available[name].Register(r)
	}
	logger.Info("Registry loaded successfully.", "plugins", len(names), "hooks", len(r.order))
	return nil
}

func sortedNames(available map[string]Module) []string {
	out := make([]string, 0, len(available))
	for name := range available {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
