// Package file provides file-based persistence for development and tests.
// Each entity is one JSON document under the root directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root       string
	workflows  *WorkflowRepository
	executions *ExecutionRepository
	tasks      *TaskRepository
	tables     *DecisionTableRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:       cleanRoot,
		workflows:  &WorkflowRepository{store: newStore(cleanRoot, "workflows")},
		executions: &ExecutionRepository{store: newStore(cleanRoot, "executions")},
		tasks:      &TaskRepository{store: newStore(cleanRoot, "tasks")},
		tables:     &DecisionTableRepository{store: newStore(cleanRoot, "decision_tables")},
	}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflows
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executions
}

func (fp *Persistence) TaskRepository() persistence.TaskRepository {
	return fp.tasks
}

func (fp *Persistence) DecisionTableRepository() persistence.DecisionTableRepository {
	return fp.tables
}

func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// store is a mutex-guarded directory of JSON documents.
type store struct {
	dir string
	mu  sync.RWMutex
}

func newStore(root, entity string) *store {
	return &store{dir: filepath.Join(root, entity)}
}

func (s *store) write(id string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	if err := os.WriteFile(s.path(id), payload, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	return nil
}

func (s *store) read(id string, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read document: %w", err)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("failed to decode document: %w", err)
	}

	return true, nil
}

func (s *store) remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	return true, nil
}

func (s *store) ids() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}

	return ids, nil
}

func (s *store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// WorkflowRepository stores workflow definitions as JSON files.
type WorkflowRepository struct {
	store *store
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.WorkflowDefinition) error {
	return r.store.write(workflow.ID, workflow)
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	var workflow models.WorkflowDefinition

	found, err := r.store.read(id, &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrWorkflowNotFound
	}

	return &workflow, nil
}

func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	found, err := r.store.remove(id)
	if err != nil {
		return err
	}

	if !found {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

// ExecutionRepository stores workflow executions as JSON files.
type ExecutionRepository struct {
	store *store
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	return r.store.write(execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	found, err := r.store.read(id, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrExecutionNotFound
	}

	return &execution, nil
}

func (r *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return r.filter(ctx, func(e *models.WorkflowExecution) bool {
		return e.WorkflowID == workflowID
	})
}

func (r *ExecutionRepository) GetByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	return r.filter(ctx, func(e *models.WorkflowExecution) bool {
		return e.Status == status
	})
}

func (r *ExecutionRepository) filter(ctx context.Context, keep func(*models.WorkflowExecution) bool) ([]*models.WorkflowExecution, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	var executions []*models.WorkflowExecution

	for _, id := range ids {
		execution, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if keep(execution) {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

// TaskRepository stores human tasks as JSON files.
type TaskRepository struct {
	store *store
}

func (r *TaskRepository) Save(_ context.Context, task *models.HumanTask) error {
	return r.store.write(task.ID, task)
}

func (r *TaskRepository) GetByID(_ context.Context, id string) (*models.HumanTask, error) {
	var task models.HumanTask

	found, err := r.store.read(id, &task)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrTaskNotFound
	}

	return &task, nil
}

func (r *TaskRepository) GetByExecution(ctx context.Context, executionID string) ([]*models.HumanTask, error) {
	return r.filter(ctx, func(t *models.HumanTask) bool {
		return t.ExecutionID == executionID
	})
}

func (r *TaskRepository) GetOpenDueBefore(ctx context.Context, deadline time.Time) ([]*models.HumanTask, error) {
	return r.filter(ctx, func(t *models.HumanTask) bool {
		return t.IsOpen() && t.DueDate != nil && t.DueDate.Before(deadline)
	})
}

func (r *TaskRepository) filter(ctx context.Context, keep func(*models.HumanTask) bool) ([]*models.HumanTask, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	var tasks []*models.HumanTask

	for _, id := range ids {
		task, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if keep(task) {
			tasks = append(tasks, task)
		}
	}

	return tasks, nil
}

// DecisionTableRepository stores decision tables as JSON files.
type DecisionTableRepository struct {
	store *store
}

func (r *DecisionTableRepository) Save(_ context.Context, table *models.DecisionTable) error {
	return r.store.write(table.ID, table)
}

func (r *DecisionTableRepository) GetByID(_ context.Context, id string) (*models.DecisionTable, error) {
	var table models.DecisionTable

	found, err := r.store.read(id, &table)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrTableNotFound
	}

	return &table, nil
}

func (r *DecisionTableRepository) GetBySlug(ctx context.Context, slug string) (*models.DecisionTable, error) {
	tables, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, table := range tables {
		if table.Slug == slug {
			return table, nil
		}
	}

	return nil, persistence.ErrTableNotFound
}

func (r *DecisionTableRepository) GetAll(ctx context.Context) ([]*models.DecisionTable, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	tables := make([]*models.DecisionTable, 0, len(ids))

	for _, id := range ids {
		table, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		tables = append(tables, table)
	}

	return tables, nil
}

func (r *DecisionTableRepository) Delete(_ context.Context, id string) error {
	found, err := r.store.remove(id)
	if err != nil {
		return err
	}

	if !found {
		return persistence.ErrTableNotFound
	}

	return nil
}
