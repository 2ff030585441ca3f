// Package cmd provides common initialization functions for the cascade
// binaries: persistence and event bus selection and registry wiring.
package cmd

import (
	"log/slog"

	"github.com/dukex/cascade/pkg/protocol"
	"github.com/dukex/cascade/pkg/registry"
)

// NewRegistry builds the node and action registry with every built-in
// strategy registered. Additional strategies can be registered on the
// returned registry without touching the control loop.
func NewRegistry(logger *slog.Logger, deps protocol.Dependencies) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterDefaultNodes(deps)
	reg.RegisterDefaultActions(deps)

	return reg
}
