package modules

import (
	"sphincs.io/sphincs/internal/api/handlers"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(infra *Infrastructure, mods []Module) handlers.ServerDeps {
	var deps handlers.ServerDeps
	if infra != nil && infra.DB != nil && infra.DB.DB != nil {
		deps.DB = infra.DB.DB
	}
	if infra != nil && infra.Audit != nil {
		deps.Audit = infra.Audit
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		contributor, ok := mod.(ServerDepsContributor)
		if !ok {
			continue
		}
		contributor.ContributeServerDeps(&deps)
	}
	return deps
}
