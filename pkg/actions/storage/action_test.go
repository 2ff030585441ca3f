package storage

import (
	"context"
	"log/slog"
	"testing"
)

func TestStorageAction_WriteReadDelete(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	logger := slog.Default()

	write, err := NewStorageAction(root, map[string]any{
		"operation": "write",
		"key":       "orders/ord-1",
		"value":     map[string]any{"status": "paid", "amount": 42.5},
	})
	if err != nil {
		t.Fatalf("Failed to create write action: %v", err)
	}

	writeResult, err := write.Execute(ctx, nil, logger)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if writeResult.Data["success"] != true {
		t.Errorf("Expected successful write, got: %v", writeResult.Data)
	}

	if writeResult.ResourceUnits == 0 {
		t.Error("Expected write to account bytes as resource units")
	}

	read, err := NewStorageAction(root, map[string]any{
		"operation": "read",
		"key":       "orders/ord-1",
	})
	if err != nil {
		t.Fatalf("Failed to create read action: %v", err)
	}

	readResult, err := read.Execute(ctx, nil, logger)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	value, ok := readResult.Data["value"].(map[string]any)
	if !ok {
		t.Fatalf("Expected document map, got: %v", readResult.Data["value"])
	}

	if value["status"] != "paid" {
		t.Errorf("Expected status 'paid', got: %v", value["status"])
	}

	del, err := NewStorageAction(root, map[string]any{
		"operation": "delete",
		"key":       "orders/ord-1",
	})
	if err != nil {
		t.Fatalf("Failed to create delete action: %v", err)
	}

	delResult, err := del.Execute(ctx, nil, logger)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if delResult.Data["deleted"] != true {
		t.Errorf("Expected deleted true, got: %v", delResult.Data["deleted"])
	}

	if _, err := read.Execute(ctx, nil, logger); err == nil {
		t.Error("Expected read of deleted document to fail")
	}
}

func TestStorageAction_RejectsEscapingKeys(t *testing.T) {
	action, err := NewStorageAction(t.TempDir(), map[string]any{
		"operation": "read",
		"key":       "../outside",
	})
	if err != nil {
		t.Fatalf("Failed to create action: %v", err)
	}

	if _, err := action.Execute(context.Background(), nil, slog.Default()); err == nil {
		t.Fatal("Expected error for key escaping the root")
	}
}

func TestNewStorageAction_Validation(t *testing.T) {
	root := t.TempDir()

	if _, err := NewStorageAction(root, map[string]any{"key": "k"}); err == nil {
		t.Error("Expected error for missing operation")
	}

	if _, err := NewStorageAction(root, map[string]any{"operation": "move", "key": "k"}); err == nil {
		t.Error("Expected error for unknown operation")
	}

	if _, err := NewStorageAction(root, map[string]any{"operation": "write", "key": "k"}); err == nil {
		t.Error("Expected error for write without value")
	}

	if _, err := NewStorageAction("", map[string]any{"operation": "read", "key": "k"}); err == nil {
		t.Error("Expected error for empty root")
	}
}
