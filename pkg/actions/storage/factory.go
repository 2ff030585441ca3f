package storage

import (
	"github.com/dukex/cascade/pkg/protocol"
)

// StorageActionFactory creates StorageAction instances under a fixed root.
type StorageActionFactory struct {
	root string
}

// NewStorageActionFactory creates a new storage action factory.
func NewStorageActionFactory(root string) protocol.ActionFactory {
	return &StorageActionFactory{root: root}
}

// Create creates a new StorageAction instance.
func (f *StorageActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewStorageAction(f.root, config)
}

// ActionType returns the action_type served by this factory.
func (f *StorageActionFactory) ActionType() string {
	return "storage"
}

// Schema returns the JSON schema for storage action configuration.
func (f *StorageActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"description": "Operation to perform on the document",
				"enum":        []string{OperationRead, OperationWrite, OperationDelete},
			},
			"key": map[string]any{
				"type":        "string",
				"description": "Document key, relative to the storage root. Supports templating",
				"examples":    []string{"orders/{{.trigger.order_id}}", "reports/daily"},
			},
			"value": map[string]any{
				"description": "Document content for write operations",
			},
		},
		"required": []string{"operation", "key"},
	}
}
