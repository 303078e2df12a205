package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/approval"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/end"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/setvariable"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/start"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence/file"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/registry"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/services"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/web"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/workflow"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())

	engine := workflow.NewEngine(store, nil, logger)
	taskService := services.NewTask(store, engine, nil)

	evalLog := decision.NewEvalLog(100)
	decisionService := services.NewDecision(store, decision.NewEngine(logger, decision.WithEvalLog(evalLog)), nil)

	deps := protocol.Dependencies{
		TaskCreator:       taskService,
		DecisionEvaluator: decisionService,
		SubworkflowRunner: engine,
	}

	reg := registry.NewRegistry(logger, deps)
	for _, factory := range []protocol.NodeFactory{
		start.NewFactory(), end.NewFactory(), setvariable.NewFactory(), approval.NewFactory(),
	} {
		reg.RegisterNode(factory)
	}

	engine.SetRegistry(reg)

	handlers := web.NewHandlers(
		services.NewWorkflow(store, workflow.NewPublishingService(store.WorkflowRepository(), nil)),
		services.NewExecution(store, engine),
		taskService,
		decisionService,
		reg,
		evalLog,
	)

	return web.NewApp(handlers)
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func simpleWorkflowRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name: "Order Flow",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "end"},
		},
	}
}

func createWorkflow(t *testing.T, app *fiber.App) models.WorkflowDefinition {
	t.Helper()

	resp, raw := doJSON(t, app, http.MethodPost, "/workflows/", simpleWorkflowRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(raw, &created))

	return created
}

func TestCreateWorkflow(t *testing.T) {
	app := setupTestApp(t)

	created := createWorkflow(t, app)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Order Flow", created.Name)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.Len(t, created.Nodes, 2)
}

func TestCreateWorkflow_ValidationFailure(t *testing.T) {
	app := setupTestApp(t)

	resp, raw := doJSON(t, app, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{Name: "ab"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "validation_error")
}

func TestCreateWorkflow_InvalidNodeConfig(t *testing.T) {
	app := setupTestApp(t)

	req := web.CreateWorkflowRequest{
		Name: "Broken Flow",
		Nodes: []*models.Node{
			{ID: "set", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": "not-an-array",
			}},
		},
	}

	resp, raw := doJSON(t, app, http.MethodPost, "/workflows/", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "invalid config")
}

func TestGetWorkflow_NotFound(t *testing.T) {
	app := setupTestApp(t)

	resp, raw := doJSON(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(raw), "not_found")
}

func TestPublishWorkflowLifecycle(t *testing.T) {
	app := setupTestApp(t)
	created := createWorkflow(t, app)

	resp, raw := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/publish", web.PublishRequest{PublishedBy: "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var published models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(raw, &published))
	assert.Equal(t, models.WorkflowStatusPublished, published.Status)
	assert.Equal(t, 1, published.Version)

	// Published workflows reject updates with a conflict.
	update := web.UpdateWorkflowRequest{Name: "Renamed Flow"}
	resp, raw = doJSON(t, app, http.MethodPut, "/workflows/"+created.ID, update)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(raw), "conflict")

	// A new draft version forks the published definition.
	resp, raw = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/versions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var draft models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(raw, &draft))
	assert.NotEqual(t, created.ID, draft.ID)
	assert.Equal(t, published.GroupID, draft.GroupID)
}

func TestPublishWorkflow_NoStartNodeRejected(t *testing.T) {
	app := setupTestApp(t)

	req := web.CreateWorkflowRequest{
		Name: "Headless Flow",
		Nodes: []*models.Node{
			{ID: "end", Type: models.NodeTypeEnd},
		},
	}

	resp, raw := doJSON(t, app, http.MethodPost, "/workflows/", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(raw, &created))

	resp, raw = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/publish", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(raw), "publish_rejected")
}

func TestStartExecutionAndFetch(t *testing.T) {
	app := setupTestApp(t)
	created := createWorkflow(t, app)

	resp, raw := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/executions", web.StartExecutionRequest{
		TriggerType: models.TriggerTypeManual,
		TriggeredBy: "tester",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var execution models.WorkflowExecution
	require.NoError(t, json.Unmarshal(raw, &execution))
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	resp, raw = doJSON(t, app, http.MethodGet, "/executions/"+execution.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.WorkflowExecution
	require.NoError(t, json.Unmarshal(raw, &fetched))
	assert.Equal(t, execution.ID, fetched.ID)

	resp, raw = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID+"/executions?status=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), execution.ID)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	app := setupTestApp(t)

	req := web.CreateWorkflowRequest{
		Name: "Approval Flow",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "approve", Type: models.NodeTypeApproval, Config: map[string]any{
				"assignees": []any{"alice"},
			}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "approve"},
			{ID: "e2", Source: "approve", Target: "end"},
		},
	}

	resp, raw := doJSON(t, app, http.MethodPost, "/workflows/", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(raw, &created))

	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/executions", web.StartExecutionRequest{
		TriggerType: models.TriggerTypeWebhook,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var execution models.WorkflowExecution
	require.NoError(t, json.Unmarshal(raw, &execution))
	require.Equal(t, models.ExecutionStatusWaiting, execution.Status)

	resp, raw = doJSON(t, app, http.MethodGet, "/tasks/?execution_id="+execution.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Tasks []models.HumanTask `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(raw, &listing))
	require.Len(t, listing.Tasks, 1)

	taskID := listing.Tasks[0].ID

	resp, _ = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/claim", web.ClaimTaskRequest{Actor: "bob"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/claim", web.ClaimTaskRequest{Actor: "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/complete", web.CompleteTaskRequest{
		Actor:   "alice",
		Outcome: "approved",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var completed models.HumanTask
	require.NoError(t, json.Unmarshal(raw, &completed))
	assert.Equal(t, models.TaskStatusCompleted, completed.Status)

	resp, raw = doJSON(t, app, http.MethodGet, "/executions/"+execution.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var finished models.WorkflowExecution
	require.NoError(t, json.Unmarshal(raw, &finished))
	assert.Equal(t, models.ExecutionStatusCompleted, finished.Status)
}

func TestDecisionTableEndpoints(t *testing.T) {
	app := setupTestApp(t)

	tableReq := web.CreateTableRequest{
		Name:      "Expense Approval",
		Slug:      "expense-approval",
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
				Outputs: map[string]models.RuleOutput{"approver": {Value: "auto"}},
			},
		},
	}

	resp, raw := doJSON(t, app, http.MethodPost, "/decision-tables/", tableReq)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.DecisionTable
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, models.TableStatusDraft, created.Status)

	resp, raw = doJSON(t, app, http.MethodPost, "/decision-tables/"+created.ID+"/evaluate", web.EvaluateRequest{
		Inputs: map[string]any{"amount": float64(42)},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.EvaluationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, result.Success)
	assert.Equal(t, "auto", result.Outputs["approver"])

	// Slug resolution works through the same endpoint.
	resp, _ = doJSON(t, app, http.MethodPost, "/decision-tables/expense-approval/evaluate", web.EvaluateRequest{
		Inputs: map[string]any{"amount": float64(10)},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = doJSON(t, app, http.MethodGet, "/decision-tables/eval-log", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var audit struct {
		Entries []decision.EvalLogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(raw, &audit))
	assert.Len(t, audit.Entries, 2)

	resp, _ = doJSON(t, app, http.MethodPost, "/decision-tables/"+created.ID+"/publish", web.PublishRequest{PublishedBy: "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = doJSON(t, app, http.MethodDelete, "/decision-tables/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(raw), "conflict")
}

func TestNodeTypesEndpoint(t *testing.T) {
	app := setupTestApp(t)

	resp, raw := doJSON(t, app, http.MethodGet, "/node-types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		NodeTypes map[string]map[string]any `json:"node_types"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Contains(t, payload.NodeTypes, "start")
	assert.Contains(t, payload.NodeTypes, "approval")
}
