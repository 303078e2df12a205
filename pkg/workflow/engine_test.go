package workflow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/approval"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/businessrule"
	decisionnode "github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/end"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/form"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/join"
	lognode "github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/log"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/loop"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/parallel"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/setvariable"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/start"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/subworkflow"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/switchnode"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/task"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence/file"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/registry"
)

// taskStore adapts the task repository to the executor port.
type taskStore struct {
	repo persistence.TaskRepository
}

func (s *taskStore) CreateTask(ctx context.Context, t *models.HumanTask) error {
	return s.repo.Save(ctx, t)
}

// tableEvaluator adapts the decision engine to the executor port.
type tableEvaluator struct {
	engine *decision.Engine
	repo   persistence.DecisionTableRepository
}

func (e *tableEvaluator) EvaluateTable(ctx context.Context, tableRef string, inputs map[string]any, source string) (*models.EvaluationResult, error) {
	table, err := e.repo.GetByID(ctx, tableRef)
	if err != nil {
		return nil, err
	}

	return e.engine.Evaluate(ctx, table, inputs, source)
}

func newTestEngine(t *testing.T) (*Engine, persistence.Persistence) {
	t.Helper()

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())
	engine := NewEngine(store, nil, logger)

	deps := protocol.Dependencies{
		TaskCreator:       &taskStore{repo: store.TaskRepository()},
		DecisionEvaluator: &tableEvaluator{engine: decision.NewEngine(logger), repo: store.DecisionTableRepository()},
		SubworkflowRunner: engine,
	}

	reg := registry.NewRegistry(logger, deps)
	for _, factory := range []protocol.NodeFactory{
		start.NewFactory(), end.NewFactory(), task.NewFactory(), lognode.NewFactory(),
		setvariable.NewFactory(), decisionnode.NewFactory(), businessrule.NewFactory(),
		switchnode.NewFactory(), loop.NewFactory(), parallel.NewFactory(), join.NewFactory(),
		approval.NewFactory(), form.NewFactory(), subworkflow.NewFactory(),
	} {
		reg.RegisterNode(factory)
	}

	engine.SetRegistry(reg)

	return engine, store
}

func saveWorkflow(t *testing.T, store persistence.Persistence, definition *models.WorkflowDefinition) {
	t.Helper()
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), definition))
}

func linearWorkflow(id string, middle ...models.Node) *models.WorkflowDefinition {
	nodes := []*models.Node{{ID: "start", Type: models.NodeTypeStart}}
	for i := range middle {
		nodes = append(nodes, &middle[i])
	}

	nodes = append(nodes, &models.Node{ID: "end", Type: models.NodeTypeEnd})

	edges := make([]*models.Edge, 0, len(nodes)-1)
	for i := 0; i < len(nodes)-1; i++ {
		edges = append(edges, &models.Edge{
			ID:     nodes[i].ID + "-" + nodes[i+1].ID,
			Source: nodes[i].ID,
			Target: nodes[i+1].ID,
		})
	}

	return &models.WorkflowDefinition{
		ID:     id,
		Name:   "test workflow",
		Status: models.WorkflowStatusPublished,
		Nodes:  nodes,
		Edges:  edges,
	}
}

func TestStart_LinearWorkflowCompletes(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-linear",
		models.Node{ID: "set", Type: models.NodeTypeSetVariable, Config: map[string]any{
			"assignments": []any{
				map[string]any{"name": "total", "expression": "base * 2"},
			},
		}},
		models.Node{ID: "log", Type: models.NodeTypeLog, Config: map[string]any{
			"message": "'total is ' + total",
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-linear", models.TriggerTypeWebhook, "tester",
		map[string]any{"base": float64(21)})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, float64(42), execution.Variables["total"])
	assert.ElementsMatch(t, []string{"start", "set", "log", "end"}, execution.CompletedNodes)
	assert.Empty(t, execution.CurrentNodes)
	assert.Equal(t, 4, execution.Metrics.NodesExecuted)
	require.NotNil(t, execution.CompletedAt)
}

func TestStart_NoStartNodeFails(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := &models.WorkflowDefinition{
		ID:     "wf-nostart",
		Name:   "no start",
		Status: models.WorkflowStatusPublished,
		Nodes:  []*models.Node{{ID: "end", Type: models.NodeTypeEnd}},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-nostart", models.TriggerTypeWebhook, "", nil)
	require.Error(t, err)
	require.NotNil(t, execution)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.Error)
	assert.Equal(t, models.ErrCodeNoStartNode, execution.Error.Code)
}

func TestStart_CompletionOutputIsVariableContext(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-output",
		models.Node{ID: "set", Type: models.NodeTypeSetVariable, Config: map[string]any{
			"assignments": []any{
				map[string]any{"name": "total", "value": float64(7)},
			},
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-output", models.TriggerTypeWebhook, "",
		map[string]any{"base": float64(1)})
	require.NoError(t, err)

	// Without an explicit end-node mapping the output is the full
	// variable context.
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.NotNil(t, execution.Output)
	assert.Equal(t, execution.Variables, execution.Output)
	assert.Equal(t, float64(7), execution.Output["total"])
}

func TestStart_MultipleStartNodesFails(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := &models.WorkflowDefinition{
		ID:     "wf-twostarts",
		Name:   "two starts",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.Node{
			{ID: "start-a", Type: models.NodeTypeStart},
			{ID: "start-b", Type: models.NodeTypeStart},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start-a", Target: "end"},
			{ID: "e2", Source: "start-b", Target: "end"},
		},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-twostarts", models.TriggerTypeWebhook, "", nil)
	require.Error(t, err)
	require.NotNil(t, execution)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.Error)
	assert.Equal(t, models.ErrCodeNoStartNode, execution.Error.Code)
	assert.Contains(t, execution.Error.Message, "exactly one")
}

func TestStart_DraftRequiresInteractiveTrigger(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-draft")
	definition.Status = models.WorkflowStatusDraft
	saveWorkflow(t, store, definition)

	_, err := engine.Start(t.Context(), "wf-draft", models.TriggerTypeWebhook, "", nil)
	assert.Error(t, err)

	execution, err := engine.Start(t.Context(), "wf-draft", models.TriggerTypeTest, "", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}

func TestStart_DecisionExpressionRoutesByLabel(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := &models.WorkflowDefinition{
		ID:     "wf-decision",
		Name:   "decision routing",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "check", Type: models.NodeTypeDecision, Config: map[string]any{
				"expression": "amount > 100",
			}},
			{ID: "high", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "route", "value": "high"}},
			}},
			{ID: "low", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "route", "value": "low"}},
			}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "check"},
			{ID: "e2", Source: "check", Target: "high", Label: "true"},
			{ID: "e3", Source: "check", Target: "low", Label: "false"},
			{ID: "e4", Source: "high", Target: "end"},
			{ID: "e5", Source: "low", Target: "end"},
		},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-decision", models.TriggerTypeWebhook, "",
		map[string]any{"amount": float64(50)})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "low", execution.Variables["route"])
	assert.NotContains(t, execution.CompletedNodes, "high")
}

func TestStart_DecisionUnmatchedOutcomeDoesNotFanOut(t *testing.T) {
	engine, store := newTestEngine(t)

	// Only the true branch is wired up; a false outcome has nowhere to go
	// and the branch simply ends instead of running every outgoing edge.
	definition := &models.WorkflowDefinition{
		ID:     "wf-decision-dead-end",
		Name:   "decision dead end",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "check", Type: models.NodeTypeDecision, Config: map[string]any{
				"expression": "amount > 100",
			}},
			{ID: "high", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "route", "value": "high"}},
			}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "check"},
			{ID: "e2", Source: "check", Target: "high", Label: "true"},
			{ID: "e3", Source: "high", Target: "end"},
		},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-decision-dead-end", models.TriggerTypeWebhook, "",
		map[string]any{"amount": float64(50)})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.NotContains(t, execution.CompletedNodes, "high")
	assert.NotContains(t, execution.Variables, "route")
}

func TestStart_DecisionTableBranchesOnBooleanOutput(t *testing.T) {
	engine, store := newTestEngine(t)

	table := &models.DecisionTable{
		ID:        "tbl-eligibility",
		Name:      "Eligibility",
		HitPolicy: models.HitPolicyFirst,
		Status:    models.TableStatusPublished,
		Version:   1,
		Inputs: []models.DecisionInput{
			{ID: "in-score", Name: "score", Type: "number"},
		},
		Outputs: []models.DecisionOutput{
			{ID: "out-eligible", Name: "eligible", Type: "boolean"},
		},
		Rules: []*models.DecisionRule{
			{
				ID:      "r1",
				Enabled: true,
				Conditions: map[string]models.ConditionExpression{
					"in-score": {Operator: models.OpGreaterThan, Value: float64(600)},
				},
				Outputs: map[string]models.RuleOutput{"out-eligible": {Value: true}},
			},
			{
				ID:      "r2",
				Enabled: true,
				Outputs: map[string]models.RuleOutput{"out-eligible": {Value: false}},
			},
		},
	}
	require.NoError(t, store.DecisionTableRepository().Save(t.Context(), table))

	definition := &models.WorkflowDefinition{
		ID:     "wf-table-branch",
		Name:   "table branch",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "check", Type: models.NodeTypeDecision, Config: map[string]any{
				"table_id": "tbl-eligibility",
				"input_mapping": map[string]any{
					"score": "applicant.score",
				},
			}},
			{ID: "offer", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "outcome", "value": "offer"}},
			}},
			{ID: "decline", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "outcome", "value": "decline"}},
			}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "check"},
			{ID: "e2", Source: "check", Target: "offer", Label: "true"},
			{ID: "e3", Source: "check", Target: "decline", Label: "false"},
			{ID: "e4", Source: "offer", Target: "end"},
			{ID: "e5", Source: "decline", Target: "end"},
		},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-table-branch", models.TriggerTypeWebhook, "",
		map[string]any{"applicant": map[string]any{"score": float64(720)}})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "offer", execution.Variables["outcome"])
	assert.NotContains(t, execution.CompletedNodes, "decline")
	assert.Equal(t, map[string]any{"eligible": true}, execution.Variables["decisionResult"])
}

func TestStart_BusinessRuleMapsInputsAndSpreadsOutputs(t *testing.T) {
	engine, store := newTestEngine(t)

	table := &models.DecisionTable{
		ID:        "tbl-approval",
		Name:      "Approval Routing",
		HitPolicy: models.HitPolicyFirst,
		Status:    models.TableStatusPublished,
		Version:   1,
		Inputs: []models.DecisionInput{
			{ID: "in-amount", Name: "amount", Type: "number"},
		},
		Outputs: []models.DecisionOutput{
			{ID: "out-approver", Name: "approver", Type: "string"},
		},
		Rules: []*models.DecisionRule{
			{
				ID:      "r1",
				Enabled: true,
				Conditions: map[string]models.ConditionExpression{
					"in-amount": {Operator: models.OpGreaterThan, Value: float64(100)},
				},
				Outputs: map[string]models.RuleOutput{"out-approver": {Value: "manager"}},
			},
			{
				ID:      "r2",
				Enabled: true,
				Outputs: map[string]models.RuleOutput{"out-approver": {Value: "auto"}},
			},
		},
	}
	require.NoError(t, store.DecisionTableRepository().Save(t.Context(), table))

	definition := linearWorkflow("wf-rule",
		models.Node{ID: "rule", Type: models.NodeTypeBusinessRule, Config: map[string]any{
			"table_id": "tbl-approval",
			"input_mapping": map[string]any{
				"amount": "order.total",
			},
			"output_variable": "routing",
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-rule", models.TriggerTypeWebhook, "",
		map[string]any{"order": map[string]any{"total": float64(500)}})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	// Outputs spread top-level and land under the output variable.
	assert.Equal(t, "manager", execution.Variables["approver"])
	assert.Equal(t, map[string]any{"approver": "manager"}, execution.Variables["routing"])
}

func TestStart_BusinessRuleFailOnNoMatch(t *testing.T) {
	engine, store := newTestEngine(t)

	table := &models.DecisionTable{
		ID:        "tbl-strict",
		Name:      "Strict Table",
		HitPolicy: models.HitPolicyFirst,
		Status:    models.TableStatusPublished,
		Inputs:    []models.DecisionInput{{ID: "in-x", Name: "x", Type: "number"}},
		Outputs:   []models.DecisionOutput{{ID: "out-y", Name: "y", Type: "string", DefaultValue: "none"}},
		Rules: []*models.DecisionRule{
			{
				ID:      "r1",
				Enabled: true,
				Conditions: map[string]models.ConditionExpression{
					"in-x": {Operator: models.OpGreaterThan, Value: float64(1000)},
				},
				Outputs: map[string]models.RuleOutput{"out-y": {Value: "big"}},
			},
		},
	}
	require.NoError(t, store.DecisionTableRepository().Save(t.Context(), table))

	definition := linearWorkflow("wf-nomatch",
		models.Node{ID: "rule", Type: models.NodeTypeBusinessRule, Config: map[string]any{
			"table_id":         "tbl-strict",
			"fail_on_no_match": true,
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-nomatch", models.TriggerTypeWebhook, "",
		map[string]any{"x": float64(5)})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.Error)
	assert.Contains(t, execution.Error.Message, "No rules matched")
}

func TestStart_ParallelFanOutAndJoin(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := &models.WorkflowDefinition{
		ID:     "wf-parallel",
		Name:   "parallel join",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "fork", Type: models.NodeTypeParallel},
			{ID: "left", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "left", "value": true}},
			}},
			{ID: "right", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "right", "value": true}},
			}},
			{ID: "merge", Type: models.NodeTypeJoin},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "fork"},
			{ID: "e2", Source: "fork", Target: "left"},
			{ID: "e3", Source: "fork", Target: "right"},
			{ID: "e4", Source: "left", Target: "merge"},
			{ID: "e5", Source: "right", Target: "merge"},
			{ID: "e6", Source: "merge", Target: "end"},
		},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-parallel", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, true, execution.Variables["left"])
	assert.Equal(t, true, execution.Variables["right"])
	assert.Contains(t, execution.CompletedNodes, "merge")
}

func TestStart_ApprovalParksExecution(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-approval",
		models.Node{ID: "approve", Type: models.NodeTypeApproval, Config: map[string]any{
			"title":     "Approve order",
			"assignees": []any{"alice"},
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-approval", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	assert.Contains(t, execution.CurrentNodes, "approve")
	assert.NotContains(t, execution.CompletedNodes, "approve")

	tasks, err := store.TaskRepository().GetByExecution(t.Context(), execution.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Approve order", tasks[0].Title)
	assert.Equal(t, models.TaskStatusPending, tasks[0].Status)
	assert.Equal(t, 1, execution.Metrics.TasksCreated)
}

func TestResume_AdvancesPastWaitingNode(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-resume",
		models.Node{ID: "approve", Type: models.NodeTypeApproval, Config: map[string]any{
			"assignees": []any{"alice"},
		}},
		models.Node{ID: "after", Type: models.NodeTypeSetVariable, Config: map[string]any{
			"assignments": []any{
				map[string]any{"name": "decision", "expression": "_task_approve_outcome"},
			},
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-resume", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaiting, execution.Status)

	resumed, err := engine.Resume(t.Context(), execution.ID, "approve",
		map[string]any{"_task_approve_outcome": "approved"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	// Resume data is visible to downstream nodes.
	assert.Equal(t, "approved", resumed.Variables["decision"])
	assert.Contains(t, resumed.CompletedNodes, "approve")
}

func TestResume_RejectsRunningExecution(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-done")
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-done", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	_, err = engine.Resume(t.Context(), execution.ID, "start", nil)
	assert.Error(t, err)
}

func TestStart_ManualTriggerAutoCompletesApproval(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-manual",
		models.Node{ID: "approve", Type: models.NodeTypeApproval, Config: map[string]any{
			"assignees": []any{"alice"},
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-manual", models.TriggerTypeManual, "tester", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "approved", execution.Variables["_task_approve_outcome"])

	tasks, err := store.TaskRepository().GetByExecution(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestStart_OnErrorContinue(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-continue",
		models.Node{
			ID:      "broken",
			Type:    models.NodeTypeBusinessRule,
			OnError: models.ErrorPolicyContinue,
			Config:  map[string]any{"table_id": "missing-table"},
		},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-continue", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Contains(t, execution.CompletedNodes, "broken")
	assert.Contains(t, execution.CompletedNodes, "end")
}

func TestStart_OnErrorGoto(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := &models.WorkflowDefinition{
		ID:     "wf-goto",
		Name:   "goto handler",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{
				ID:                "broken",
				Type:              models.NodeTypeBusinessRule,
				OnError:           models.ErrorPolicyGoto,
				ErrorTargetNodeID: "handler",
				Config:            map[string]any{"table_id": "missing-table"},
			},
			{ID: "handler", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "handled", "value": true}},
			}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "broken"},
			{ID: "e2", Source: "broken", Target: "end"},
			{ID: "e3", Source: "handler", Target: "end"},
		},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-goto", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, true, execution.Variables["handled"])
}

func TestStart_OnErrorStopFailsExecution(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-stop",
		models.Node{ID: "broken", Type: models.NodeTypeBusinessRule, Config: map[string]any{
			"table_id": "missing-table",
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-stop", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.Error)
	assert.Equal(t, "broken", execution.Error.NodeID)
	assert.Equal(t, models.ErrCodeNodeFailed, execution.Error.Code)
}

func TestStart_DisabledNodePassesThrough(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-disabled",
		models.Node{ID: "off", Type: models.NodeTypeSetVariable, Disabled: true, Config: map[string]any{
			"assignments": []any{map[string]any{"name": "touched", "value": true}},
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-disabled", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.NotContains(t, execution.Variables, "touched")
	assert.Contains(t, execution.CompletedNodes, "off")
}

func TestStart_ConditionGuardSkipsNode(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-guard",
		models.Node{ID: "guarded", Type: models.NodeTypeSetVariable, Condition: "amount > 100", Config: map[string]any{
			"assignments": []any{map[string]any{"name": "touched", "value": true}},
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-guard", models.TriggerTypeWebhook, "",
		map[string]any{"amount": float64(10)})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.NotContains(t, execution.Variables, "touched")
}

func TestStart_SwitchRoutesByCaseLabel(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := &models.WorkflowDefinition{
		ID:     "wf-switch",
		Name:   "switch routing",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "route", Type: models.NodeTypeSwitch, Config: map[string]any{
				"expression": "category",
			}},
			{ID: "travel", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "desk", "value": "travel-desk"}},
			}},
			{ID: "other", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "desk", "value": "general"}},
			}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "route"},
			{ID: "e2", Source: "route", Target: "travel", Label: "travel"},
			{ID: "e3", Source: "route", Target: "other", Label: "default"},
			{ID: "e4", Source: "travel", Target: "end"},
			{ID: "e5", Source: "other", Target: "end"},
		},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-switch", models.TriggerTypeWebhook, "",
		map[string]any{"category": "travel"})
	require.NoError(t, err)
	assert.Equal(t, "travel-desk", execution.Variables["desk"])

	execution, err = engine.Start(t.Context(), "wf-switch", models.TriggerTypeWebhook, "",
		map[string]any{"category": "office"})
	require.NoError(t, err)
	assert.Equal(t, "general", execution.Variables["desk"])
}

func TestStart_LoopAccumulatesResults(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-loop",
		models.Node{ID: "double", Type: models.NodeTypeLoop, Config: map[string]any{
			"items":      "numbers",
			"expression": "item * 2",
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-loop", models.TriggerTypeWebhook, "",
		map[string]any{"numbers": []any{float64(1), float64(2), float64(3)}})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []any{float64(2), float64(4), float64(6)}, execution.Variables["results"])
}

func TestRunSubworkflow_FoldsChildOutput(t *testing.T) {
	engine, store := newTestEngine(t)

	child := linearWorkflow("wf-child",
		models.Node{ID: "compute", Type: models.NodeTypeSetVariable, Config: map[string]any{
			"assignments": []any{
				map[string]any{"name": "doubled", "expression": "n * 2"},
			},
		}},
	)
	child.Nodes[len(child.Nodes)-1].Config = map[string]any{
		"output": map[string]any{"doubled": "doubled"},
	}
	saveWorkflow(t, store, child)

	parent := linearWorkflow("wf-parent",
		models.Node{ID: "sub", Type: models.NodeTypeSubworkflow, Config: map[string]any{
			"workflow_id": "wf-child",
			"input_mapping": map[string]any{
				"n": "seed",
			},
			"output_variable": "childResult",
		}},
	)
	saveWorkflow(t, store, parent)

	execution, err := engine.Start(t.Context(), "wf-parent", models.TriggerTypeWebhook, "",
		map[string]any{"seed": float64(21)})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, map[string]any{"doubled": float64(42)}, execution.Variables["childResult"])

	// The child run is persisted with the parent linkage.
	children, err := store.ExecutionRepository().GetByWorkflow(t.Context(), "wf-child")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, execution.ID, children[0].ParentID)
}

func TestCancel_NonTerminalExecution(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := linearWorkflow("wf-cancel",
		models.Node{ID: "approve", Type: models.NodeTypeApproval, Config: map[string]any{
			"assignees": []any{"alice"},
		}},
	)
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-cancel", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaiting, execution.Status)

	cancelled, err := engine.Cancel(t.Context(), execution.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)

	_, err = engine.Cancel(t.Context(), execution.ID, "admin")
	assert.Error(t, err)
}

func TestStart_EdgePriorityOrdersEvaluation(t *testing.T) {
	engine, store := newTestEngine(t)

	definition := &models.WorkflowDefinition{
		ID:     "wf-priority",
		Name:   "edge priority",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "a", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "winner", "value": "a"}},
			}},
			{ID: "b", Type: models.NodeTypeSetVariable, Config: map[string]any{
				"assignments": []any{map[string]any{"name": "winner", "value": "b"}},
			}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			// Both conditions pass; the higher priority edge runs first so
			// the lower priority target overwrites last.
			{ID: "e1", Source: "start", Target: "a", Priority: 10, Condition: "true"},
			{ID: "e2", Source: "start", Target: "b", Priority: 1, Condition: "true"},
			{ID: "e3", Source: "a", Target: "end"},
			{ID: "e4", Source: "b", Target: "end"},
		},
	}
	saveWorkflow(t, store, definition)

	execution, err := engine.Start(t.Context(), "wf-priority", models.TriggerTypeWebhook, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "b", execution.Variables["winner"])
}
