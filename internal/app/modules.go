package app

import (
	"github.com/vk/unitgrid/internal/registry"
	"github.com/vk/unitgrid/modules/environment"
	"github.com/vk/unitgrid/modules/stdoutreport"
)

// alwaysOn are the plugins loaded whatever the project enables.
var alwaysOn = []string{environment.Name}

// coreModules returns every plugin compiled into the binary, keyed by the
// name a project enables it with.
func (a *App) coreModules(env *environment.Module) map[string]registry.Module {
	return map[string]registry.Module{
		environment.Name:  env,
		stdoutreport.Name: stdoutreport.New(a.outW),
	}
}
