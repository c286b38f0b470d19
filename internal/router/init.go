package router

import (
	"github.com/oksasatya/go-account-identity/internal/container"
	handlers "github.com/oksasatya/go-account-identity/internal/interface/http"
	"github.com/oksasatya/go-account-identity/internal/router/modules"
)

// InitModules wires every feature module from the container and adds it to
// the registry. Call once during startup, before RegisterAll.
func InitModules(r *Registry, c *container.Container) {
	accountHandler := handlers.NewAccountHandler(c.Service, c.Logger)
	r.Add(modules.NewAccountModule(accountHandler, c.Guard))
}
