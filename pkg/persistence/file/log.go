package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/dukex/cascade/pkg/models"
)

// ExecutionLogRepository appends structured log entries, one JSON line per
// entry, to a per-execution file.
type ExecutionLogRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(root string) *ExecutionLogRepository {
	return &ExecutionLogRepository{root: root}
}

func (lr *ExecutionLogRepository) dir() string {
	return path.Join(lr.root, "logs")
}

// Append writes one log entry to the end of the execution's log file.
func (lr *ExecutionLogRepository) Append(_ context.Context, entry *models.ExecutionLog) error {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if err := os.MkdirAll(lr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry %s: %w", entry.ID, err)
	}

	filePath := path.Join(lr.dir(), entry.ExecutionID+".jsonl")

	file, err := os.OpenFile(filepath.Clean(filePath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file for execution %s: %w", entry.ExecutionID, err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append log entry %s: %w", entry.ID, err)
	}

	return nil
}

// ListByExecution returns the entries of one execution in append order.
func (lr *ExecutionLogRepository) ListByExecution(_ context.Context, executionID string) ([]*models.ExecutionLog, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	filePath := filepath.Clean(path.Join(lr.dir(), executionID+".jsonl"))

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.ExecutionLog{}, nil
		}

		return nil, fmt.Errorf("failed to open log file for execution %s: %w", executionID, err)
	}
	defer file.Close()

	var entries []*models.ExecutionLog

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry models.ExecutionLog

		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry for execution %s: %w", executionID, err)
		}

		entries = append(entries, &entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file for execution %s: %w", executionID, err)
	}

	return entries, nil
}
