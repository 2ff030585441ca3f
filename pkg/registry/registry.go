// Package registry holds the node and action factories available to workers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/cascade/pkg/protocol"
)

var (
	ErrNodeNotRegistered   = errors.New("node type not registered")
	ErrActionNotRegistered = errors.New("action type not registered")
)

type Registry struct {
	logger          *slog.Logger
	nodeFactories   map[string]protocol.NodeFactory
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		nodeFactories:   make(map[string]protocol.NodeFactory),
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

func (r *Registry) RegisterNode(nodeFactory protocol.NodeFactory) {
	r.nodeFactories[nodeFactory.Type()] = nodeFactory
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.actionFactories[actionFactory.ActionType()] = actionFactory
}

// CreateNode instantiates a node of the given type after validating the
// configuration against the factory schema.
func (r *Registry) CreateNode(ctx context.Context, nodeType, id string, config map[string]any) (protocol.Node, error) {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNodeNotRegistered, nodeType)
	}

	if err := validateConfig(config, factory.Schema()); err != nil {
		return nil, fmt.Errorf("invalid config for node type '%s': %w", nodeType, err)
	}

	return factory.Create(ctx, id, config)
}

// CreateAction instantiates the sub-strategy serving the given action_type.
func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrActionNotRegistered, actionType)
	}

	if err := validateConfig(config, factory.Schema()); err != nil {
		return nil, fmt.Errorf("invalid config for action type '%s': %w", actionType, err)
	}

	return factory.Create(config)
}

// ValidateNodeConfig checks a config against the schema registered for the
// node type without instantiating the node.
func (r *Registry) ValidateNodeConfig(nodeType string, config map[string]any) error {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrNodeNotRegistered, nodeType)
	}

	return validateConfig(config, factory.Schema())
}

// HasNode reports whether a node type is registered.
func (r *Registry) HasNode(nodeType string) bool {
	_, ok := r.nodeFactories[nodeType]

	return ok
}

// HasAction reports whether an action type is registered.
func (r *Registry) HasAction(actionType string) bool {
	_, ok := r.actionFactories[actionType]

	return ok
}

// GetAvailableNodes returns the registered node factories sorted by type.
func (r *Registry) GetAvailableNodes() []protocol.NodeFactory {
	factories := make([]protocol.NodeFactory, 0, len(r.nodeFactories))
	for _, factory := range r.nodeFactories {
		factories = append(factories, factory)
	}

	sort.Slice(factories, func(i, j int) bool {
		return factories[i].Type() < factories[j].Type()
	})

	return factories
}

// GetAvailableActions returns the registered action types sorted.
func (r *Registry) GetAvailableActions() []string {
	types := make([]string, 0, len(r.actionFactories))
	for actionType := range r.actionFactories {
		types = append(types, actionType)
	}

	sort.Strings(types)

	return types
}

// validateConfig validates a node or action configuration against its JSON
// schema. A nil or empty schema accepts anything.
func validateConfig(config, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errs []string
		for _, resultError := range result.Errors() {
			errs = append(errs, resultError.String())
		}

		return fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
