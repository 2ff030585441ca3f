package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
)

// ExecutionRepository handles execution file operations.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return path.Join(er.root, "executions")
}

// Create writes a new execution, failing when the ID is already taken.
func (er *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	filePath := path.Join(er.dir(), execution.ID+".json")
	if _, err := os.Stat(filePath); err == nil {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	return er.write(execution)
}

// Update overwrites an existing execution.
func (er *ExecutionRepository) Update(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution.UpdatedAt = time.Now().UTC()

	return er.write(execution)
}

func (er *ExecutionRepository) write(execution *models.Execution) error {
	if err := os.MkdirAll(er.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	return os.WriteFile(path.Join(er.dir(), execution.ID+".json"), data, 0600)
}

// GetByID retrieves an execution by its ID.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	filePath := filepath.Clean(path.Join(er.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var execution models.Execution

	if err := json.Unmarshal(body, &execution); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

// List returns executions matching the options, newest first.
func (er *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.Execution, error) {
	jsonFiles, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-len(".json")]

		execution, err := er.GetByID(ctx, id)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		if opts.WorkflowID != "" && execution.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != "" && execution.Status != opts.Status {
			continue
		}

		if opts.TenantID != "" && execution.TenantID != opts.TenantID {
			continue
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(executions) {
			return []*models.Execution{}, nil
		}

		executions = executions[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(executions) {
		executions = executions[:opts.Limit]
	}

	return executions, nil
}
