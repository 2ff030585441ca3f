package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/cascade/pkg/models"
)

// ExecutionLogRepository handles the append-only execution log.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

// Append inserts one log entry.
func (l *ExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLog) error {
	metadataJSON, err := marshalJSON(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal log metadata: %w", err)
	}

	query := `
		INSERT INTO execution_logs (id, execution_id, event_type, node_id, message, metadata, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = l.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.EventType,
		nullString(entry.NodeID),
		entry.Message,
		metadataJSON,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	return nil
}

// ListByExecution returns the log entries of one execution in append order.
func (l *ExecutionLogRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	query := `
		SELECT id, execution_id, event_type, node_id, message, metadata, logged_at
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY seq ASC
	`

	rows, err := l.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			l.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		var (
			entry        models.ExecutionLog
			nodeID       sql.NullString
			metadataJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.ExecutionID,
			&entry.EventType,
			&nodeID,
			&entry.Message,
			&metadataJSON,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		entry.NodeID = nodeID.String
		entry.Timestamp = entry.Timestamp.UTC()

		if err := unmarshalJSON(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log metadata: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return entries, nil
}
