package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
)

// ExecutionRepository stores workflow executions.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	document, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to encode execution: %w", err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, trigger_type, parent_id, wait_until, document, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			wait_until = EXCLUDED.wait_until,
			document = EXCLUDED.document,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, string(execution.Status), string(execution.TriggerType),
		nullable(execution.ParentID), execution.WaitUntil, document, execution.CreatedAt, execution.CompletedAt)
	if err != nil {
		return persistence.NewStoreError("Save", "execution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, `SELECT document FROM executions WHERE id = $1`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "execution", id, err)
	}

	return decodeExecution(document, id)
}

func (r *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := `SELECT document FROM executions WHERE workflow_id = $1 ORDER BY created_at DESC`

	return r.query(ctx, query, workflowID)
}

func (r *ExecutionRepository) GetByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	query := `SELECT document FROM executions WHERE status = $1 ORDER BY created_at`

	return r.query(ctx, query, string(status))
}

func (r *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("query", "execution", "", err)
	}
	defer rows.Close()

	var executions []*models.WorkflowExecution

	for rows.Next() {
		var document []byte

		if err := rows.Scan(&document); err != nil {
			return nil, persistence.NewStoreError("query", "execution", "", err)
		}

		execution, err := decodeExecution(document, "")
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("query", "execution", "", err)
	}

	return executions, nil
}

func decodeExecution(document []byte, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	if err := json.Unmarshal(document, &execution); err != nil {
		return nil, persistence.NewStoreError("decode", "execution", id, err)
	}

	return &execution, nil
}

// nullable maps empty strings to SQL NULL.
func nullable(value string) any {
	if value == "" {
		return nil
	}

	return value
}
