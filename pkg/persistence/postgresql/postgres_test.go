package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"tasks", "executions", "decision_tables", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flowforge_test"),
			postgres.WithUsername("flowforge"),
			postgres.WithPassword("flowforge"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx
}

func testWorkflow(name string) *models.WorkflowDefinition {
	id := uuid.New().String()
	now := time.Now().UTC()

	return &models.WorkflowDefinition{
		ID:      id,
		GroupID: id,
		Name:    name,
		Status:  models.WorkflowStatusDraft,
		Version: 1,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart, Name: "Start"},
			{ID: "end", Type: models.NodeTypeEnd, Name: "End"},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "end"},
		},
		Owner:     "tester",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWorkflowRepository_Lifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.WorkflowRepository()
	workflow := testWorkflow("Order Approval")

	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, models.WorkflowStatusDraft, loaded.Status)
	assert.Len(t, loaded.Nodes, 2)
	assert.Len(t, loaded.Edges, 1)

	// Saving again with the same id updates in place.
	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusPublished
	workflow.Version = 2
	workflow.PublishedAt = &now
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err = repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPublished, loaded.Status)
	assert.Equal(t, 2, loaded.Version)
	require.NotNil(t, loaded.PublishedAt)

	other := testWorkflow("Expense Review")
	require.NoError(t, repo.Save(ctx, other))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestWorkflowRepository_SoftDelete(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.WorkflowRepository()
	workflow := testWorkflow("Ephemeral")
	require.NoError(t, repo.Save(ctx, workflow))

	require.NoError(t, repo.Delete(ctx, workflow.ID))

	_, err := repo.GetByID(ctx, workflow.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Deleting twice reports not found.
	err = repo.Delete(ctx, workflow.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_GetByIDNotFound(t *testing.T) {
	p, ctx := setupTestDB(t)

	_, err := p.WorkflowRepository().GetByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestExecutionRepository_Lifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.ExecutionRepository()
	workflowID := uuid.New().String()

	execution := &models.WorkflowExecution{
		ID:           uuid.New().String(),
		WorkflowID:   workflowID,
		Version:      1,
		Status:       models.ExecutionStatusRunning,
		Variables:    map[string]any{"total": float64(120)},
		CurrentNodes: []string{"approve"},
		TriggerType:  models.TriggerTypeWebhook,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, execution))

	loaded, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)
	assert.Equal(t, float64(120), loaded.Variables["total"])
	assert.Equal(t, []string{"approve"}, loaded.CurrentNodes)

	waitUntil := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	execution.Status = models.ExecutionStatusWaiting
	execution.WaitUntil = &waitUntil
	require.NoError(t, repo.Save(ctx, execution))

	loaded, err = repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, loaded.Status)
	require.NotNil(t, loaded.WaitUntil)
	assert.True(t, waitUntil.Equal(*loaded.WaitUntil))

	byWorkflow, err := repo.GetByWorkflow(ctx, workflowID)
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)

	waiting, err := repo.GetByStatus(ctx, models.ExecutionStatusWaiting)
	require.NoError(t, err)
	assert.Len(t, waiting, 1)

	running, err := repo.GetByStatus(ctx, models.ExecutionStatusRunning)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestTaskRepository_Lifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.TaskRepository()
	executionID := uuid.New().String()
	due := time.Now().UTC().Add(-time.Hour)

	overdue := &models.HumanTask{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		WorkflowID:  uuid.New().String(),
		NodeID:      "approve",
		Type:        models.TaskTypeApproval,
		Title:       "Approve order",
		Assignees:   []string{"alice", "bob"},
		Status:      models.TaskStatusPending,
		DueDate:     &due,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, overdue))

	noDue := &models.HumanTask{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		NodeID:      "review",
		Type:        models.TaskTypeGeneric,
		Status:      models.TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, noDue))

	loaded, err := repo.GetByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypeApproval, loaded.Type)
	assert.Equal(t, []string{"alice", "bob"}, loaded.Assignees)

	byExecution, err := repo.GetByExecution(ctx, executionID)
	require.NoError(t, err)
	assert.Len(t, byExecution, 2)

	dueBefore, err := repo.GetOpenDueBefore(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, dueBefore, 1)
	assert.Equal(t, overdue.ID, dueBefore[0].ID)

	// Completed tasks fall out of the overdue sweep.
	completedAt := time.Now().UTC()
	overdue.Status = models.TaskStatusCompleted
	overdue.Outcome = "approved"
	overdue.CompletedAt = &completedAt
	require.NoError(t, repo.Save(ctx, overdue))

	dueBefore, err = repo.GetOpenDueBefore(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, dueBefore)
}

func TestDecisionTableRepository_Lifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.DecisionTableRepository()
	now := time.Now().UTC()

	table := &models.DecisionTable{
		ID:        uuid.New().String(),
		Slug:      "expense-approval",
		Name:      "Expense Approval",
		HitPolicy: models.HitPolicyFirst,
		Inputs: []models.DecisionInput{
			{ID: "amount", Name: "Amount", Type: "number"},
		},
		Outputs: []models.DecisionOutput{
			{ID: "approver", Name: "Approver", Type: "string"},
		},
		Rules: []*models.DecisionRule{
			{
				ID: "rule-auto",
				Conditions: map[string]models.ConditionExpression{
					"amount": {Operator: models.OpLessThanOrEqual, Value: float64(100)},
				},
				Outputs: map[string]models.RuleOutput{
					"approver": {Value: "auto"},
				},
			},
		},
		Version:   1,
		Status:    models.TableStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Save(ctx, table))

	bySlug, err := repo.GetBySlug(ctx, "expense-approval")
	require.NoError(t, err)
	assert.Equal(t, table.ID, bySlug.ID)
	assert.Equal(t, models.HitPolicyFirst, bySlug.HitPolicy)
	require.Len(t, bySlug.Rules, 1)

	table.Status = models.TableStatusPublished
	table.Version = 2
	table.PublishedAt = &now
	require.NoError(t, repo.Save(ctx, table))

	byID, err := repo.GetByID(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusPublished, byID.Status)
	assert.Equal(t, 2, byID.Version)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, table.ID))

	_, err = repo.GetByID(ctx, table.ID)
	assert.ErrorIs(t, err, persistence.ErrTableNotFound)

	err = repo.Delete(ctx, table.ID)
	assert.ErrorIs(t, err, persistence.ErrTableNotFound)
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))
}
