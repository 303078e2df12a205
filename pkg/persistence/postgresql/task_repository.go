package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
)

// TaskRepository stores human tasks.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Save(ctx context.Context, task *models.HumanTask) error {
	document, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	query := `
		INSERT INTO tasks (id, execution_id, workflow_id, node_id, type, status, claimed_by, due_date, document, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			claimed_by = EXCLUDED.claimed_by,
			due_date = EXCLUDED.due_date,
			document = EXCLUDED.document,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID, task.ExecutionID, task.WorkflowID, task.NodeID, string(task.Type), string(task.Status),
		nullable(task.ClaimedBy), task.DueDate, document, task.CreatedAt, task.CompletedAt)
	if err != nil {
		return persistence.NewStoreError("Save", "task", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.HumanTask, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, `SELECT document FROM tasks WHERE id = $1`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrTaskNotFound
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "task", id, err)
	}

	return decodeTask(document, id)
}

func (r *TaskRepository) GetByExecution(ctx context.Context, executionID string) ([]*models.HumanTask, error) {
	query := `SELECT document FROM tasks WHERE execution_id = $1 ORDER BY created_at`

	return r.query(ctx, query, executionID)
}

func (r *TaskRepository) GetOpenDueBefore(ctx context.Context, deadline time.Time) ([]*models.HumanTask, error) {
	query := `
		SELECT document FROM tasks
		WHERE status IN ('pending', 'claimed') AND due_date IS NOT NULL AND due_date < $1
		ORDER BY due_date
	`

	return r.query(ctx, query, deadline)
}

func (r *TaskRepository) query(ctx context.Context, query string, args ...any) ([]*models.HumanTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("query", "task", "", err)
	}
	defer rows.Close()

	var tasks []*models.HumanTask

	for rows.Next() {
		var document []byte

		if err := rows.Scan(&document); err != nil {
			return nil, persistence.NewStoreError("query", "task", "", err)
		}

		task, err := decodeTask(document, "")
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("query", "task", "", err)
	}

	return tasks, nil
}

func decodeTask(document []byte, id string) (*models.HumanTask, error) {
	var task models.HumanTask

	if err := json.Unmarshal(document, &task); err != nil {
		return nil, persistence.NewStoreError("decode", "task", id, err)
	}

	return &task, nil
}
