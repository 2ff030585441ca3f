// Package storage provides the storage action for workflow execution. It
// reads, writes and deletes JSON documents under a configured root directory.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/protocol"
)

const (
	OperationRead   = "read"
	OperationWrite  = "write"
	OperationDelete = "delete"
)

// StorageAction performs one operation on a keyed JSON document.
type StorageAction struct {
	Root      string
	Operation string
	Key       string
	Value     any
}

// NewStorageAction creates a new storage action from rendered config.
func NewStorageAction(root string, config map[string]any) (*StorageAction, error) {
	if root == "" {
		return nil, errors.New("storage root directory is not configured")
	}

	action := &StorageAction{Root: root}

	if operation, ok := config["operation"].(string); ok {
		action.Operation = operation
	} else {
		return nil, errors.New("missing required field 'operation'")
	}

	switch action.Operation {
	case OperationRead, OperationWrite, OperationDelete:
	default:
		return nil, fmt.Errorf("unknown storage operation '%s'", action.Operation)
	}

	if key, ok := config["key"].(string); ok && key != "" {
		action.Key = key
	} else {
		return nil, errors.New("missing required field 'key'")
	}

	action.Value = config["value"]

	if action.Operation == OperationWrite && action.Value == nil {
		return nil, errors.New("write operation requires a 'value'")
	}

	return action, nil
}

// Execute performs the configured operation.
func (a *StorageAction) Execute(ctx context.Context, _ *models.ExecutionContext, logger *slog.Logger) (*protocol.Result, error) {
	path, err := a.documentPath()
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Performing storage operation", "operation", a.Operation, "key", a.Key)

	switch a.Operation {
	case OperationWrite:
		return a.write(path)
	case OperationRead:
		return a.read(path)
	case OperationDelete:
		return a.delete(path)
	}

	return nil, fmt.Errorf("unknown storage operation '%s'", a.Operation)
}

func (a *StorageAction) write(path string) (*protocol.Result, error) {
	data, err := json.MarshalIndent(a.Value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write document '%s': %w", a.Key, err)
	}

	return &protocol.Result{
		Data: map[string]any{
			"key":           a.Key,
			"bytes_written": len(data),
			"success":       true,
		},
		ResourceUnits: len(data),
	}, nil
}

func (a *StorageAction) read(path string) (*protocol.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document '%s' not found", a.Key)
		}

		return nil, fmt.Errorf("failed to read document '%s': %w", a.Key, err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to decode document '%s': %w", a.Key, err)
	}

	return &protocol.Result{
		Data: map[string]any{
			"key":   a.Key,
			"value": value,
		},
	}, nil
}

func (a *StorageAction) delete(path string) (*protocol.Result, error) {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to delete document '%s': %w", a.Key, err)
	}

	return &protocol.Result{
		Data: map[string]any{
			"key":     a.Key,
			"deleted": err == nil,
		},
	}, nil
}

// documentPath resolves the key inside the root, rejecting path escapes.
func (a *StorageAction) documentPath() (string, error) {
	key := filepath.Clean(a.Key)
	if filepath.IsAbs(key) || strings.HasPrefix(key, "..") {
		return "", fmt.Errorf("storage key '%s' escapes the root directory", a.Key)
	}

	return filepath.Join(a.Root, key+".json"), nil
}
