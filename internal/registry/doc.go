// Package registry provides the central "glue" for the plugin system.
//
// Plugins are registry.Modules. Each one registers named lifecycle hooks
// that run before and after the build and around every test execution.
// The Registry dispatches those events in registration order and is what
// the orchestrator notifies.
//
// The set of compiled-in modules is fixed; a project enables them by name
// through its plugins list, and unknown names are rejected before anything
// runs.
package registry
