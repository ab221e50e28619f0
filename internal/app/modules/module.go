// Package modules contains domain-oriented dependency modules for the
// composition root.
//
// Import Path: sphincs.io/sphincs/internal/app/modules
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"sphincs.io/sphincs/internal/api/handlers"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// ContributeServerDeps injects module-owned dependencies into the HTTP server deps.
	ContributeServerDeps(*handlers.ServerDeps)

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}

// ServerDepsContributor is the subset of Module that NewServerDeps uses.
type ServerDepsContributor interface {
	ContributeServerDeps(*handlers.ServerDeps)
}

// Starter is implemented by modules that run background loops. Start must
// not block; loops go to the Background worker pool.
type Starter interface {
	Start(context.Context) error
}
