// Package registry provides node and action factory registration.
package registry

import (
	"github.com/dukex/cascade/pkg/actions/delay"
	"github.com/dukex/cascade/pkg/actions/httpcall"
	"github.com/dukex/cascade/pkg/actions/publish"
	"github.com/dukex/cascade/pkg/actions/storage"
	actionnode "github.com/dukex/cascade/pkg/nodes/action"
	"github.com/dukex/cascade/pkg/nodes/agent"
	"github.com/dukex/cascade/pkg/nodes/condition"
	"github.com/dukex/cascade/pkg/nodes/integration"
	"github.com/dukex/cascade/pkg/nodes/trigger"
	"github.com/dukex/cascade/pkg/protocol"
)

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes(deps protocol.Dependencies) {
	// Register Trigger node
	r.RegisterNode(trigger.NewTriggerNodeFactory())

	// Register Condition node
	r.RegisterNode(condition.NewConditionNodeFactory())

	// Register Action node, dispatching to the action table below
	r.RegisterNode(actionnode.NewActionNodeFactory(r, deps))

	// Register Integration node
	r.RegisterNode(integration.NewIntegrationNodeFactory())

	// Register Agent node
	r.RegisterNode(agent.NewAgentNodeFactory(deps))
}

// RegisterDefaultActions registers all built-in action sub-strategies.
func (r *Registry) RegisterDefaultActions(deps protocol.Dependencies) {
	r.RegisterAction(httpcall.NewHTTPCallActionFactory())
	r.RegisterAction(storage.NewStorageActionFactory(deps.StorageRoot))
	r.RegisterAction(publish.NewPublishActionFactory(deps.Publisher))
	r.RegisterAction(delay.NewDelayActionFactory())
}
