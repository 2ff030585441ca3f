package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/cascade/pkg/models"
	"github.com/dukex/cascade/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , tenant_id
  , requester_id
  , status
  , trigger_data
  , variables
  , plan
  , metrics
  , error_details
  , started_at
  , completed_at
  , created_at
  , updated_at
`

// Create inserts a new execution. An existing id is an error, never an
// overwrite.
func (e *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	if execution.UpdatedAt.IsZero() {
		execution.UpdatedAt = now
	}

	args, err := executionArgs(execution)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, tenant_id, requester_id, status, trigger_data, variables, plan, metrics, error_details, started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '[]'::jsonb), COALESCE($9, '{}'::jsonb), $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	if rowsAffected == 0 {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	return nil
}

// Update rewrites the stored execution, plan included.
func (e *ExecutionRepository) Update(ctx context.Context, execution *models.Execution) error {
	args, err := executionArgs(execution)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	query := `
		UPDATE executions SET
			workflow_id = $2,
			tenant_id = $3,
			requester_id = $4,
			status = $5,
			trigger_data = $6,
			variables = $7,
			plan = COALESCE($8, '[]'::jsonb),
			metrics = COALESCE($9, '{}'::jsonb),
			error_details = $10,
			started_at = $11,
			completed_at = $12,
			created_at = $13,
			updated_at = $14
		WHERE id = $1
	`

	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	if rowsAffected == 0 {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// GetByID returns an execution by its ID.
func (e *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := e.scanExecution(e.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// List returns executions filtered by the options, newest first.
func (e *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions`

	var (
		conditions []string
		args       []any
	)

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		conditions = append(conditions, fmt.Sprintf("workflow_id = $%d", len(args)))
	}

	if opts.Status != "" {
		args = append(args, string(opts.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if opts.TenantID != "" {
		args = append(args, opts.TenantID)
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			e.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := e.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func executionArgs(execution *models.Execution) ([]any, error) {
	triggerDataJSON, err := marshalJSON(execution.TriggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	variablesJSON, err := marshalJSON(execution.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	planJSON, err := marshalJSON(execution.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}

	metricsJSON, err := marshalJSON(execution.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metrics: %w", err)
	}

	errorDetailsJSON, err := marshalJSON(execution.ErrorDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error details: %w", err)
	}

	return []any{
		execution.ID,
		execution.WorkflowID,
		nullString(execution.TenantID),
		nullString(execution.RequesterID),
		string(execution.Status),
		triggerDataJSON,
		variablesJSON,
		planJSON,
		metricsJSON,
		errorDetailsJSON,
		nullTime(execution.StartedAt),
		nullTime(execution.CompletedAt),
		execution.CreatedAt,
		execution.UpdatedAt,
	}, nil
}

func (e *ExecutionRepository) scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution        models.Execution
		tenantID         sql.NullString
		requesterID      sql.NullString
		status           string
		triggerDataJSON  []byte
		variablesJSON    []byte
		planJSON         []byte
		metricsJSON      []byte
		errorDetailsJSON []byte
		startedAt        sql.NullTime
		completedAt      sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&tenantID,
		&requesterID,
		&status,
		&triggerDataJSON,
		&variablesJSON,
		&planJSON,
		&metricsJSON,
		&errorDetailsJSON,
		&startedAt,
		&completedAt,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.TenantID = tenantID.String
	execution.RequesterID = requesterID.String
	execution.Status = models.ExecutionStatus(status)

	if err := unmarshalJSON(triggerDataJSON, &execution.TriggerData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
	}

	if err := unmarshalJSON(variablesJSON, &execution.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	if err := unmarshalJSON(planJSON, &execution.Plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}

	if err := unmarshalJSON(metricsJSON, &execution.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}

	if err := unmarshalJSON(errorDetailsJSON, &execution.ErrorDetails); err != nil {
		return nil, fmt.Errorf("failed to unmarshal error details: %w", err)
	}

	if startedAt.Valid {
		value := startedAt.Time.UTC()
		execution.StartedAt = &value
	}

	if completedAt.Valid {
		value := completedAt.Time.UTC()
		execution.CompletedAt = &value
	}

	return &execution, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *value, Valid: true}
}
