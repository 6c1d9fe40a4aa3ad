package testutil

import "github.com/vk/unitgrid/internal/registry"

// SimpleModule is a test helper for easily creating a plugin module that
// registers a single hook.
type SimpleModule struct {
	Name string
	Hook *registry.RegisteredHook
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.Name != "" && m.Hook != nil {
		r.RegisterHook(m.Name, m.Hook)
	}
}
