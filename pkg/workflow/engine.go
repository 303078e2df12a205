// Package workflow implements the graph traversal engine: starting,
// resuming and cancelling executions of a workflow definition.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/eventbus"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/events"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/otelhelper"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/registry"
)

const tracerName = "flowforge/workflow"

// Engine runs workflow executions. One engine instance serves many
// concurrent executions; per-execution state lives in the execution model.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewEngine(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Engine {
	return &Engine{
		persistence: p,
		publisher:   publisher,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// SetRegistry attaches the node registry. Set once at wiring time; the
// registry's dependencies may point back at this engine for subworkflows.
func (e *Engine) SetRegistry(reg *registry.Registry) {
	e.registry = reg
}

// Start creates and runs a new execution of the given workflow.
func (e *Engine) Start(ctx context.Context, workflowID string, triggerType models.TriggerType, triggeredBy string, input map[string]any) (*models.WorkflowExecution, error) {
	return e.start(ctx, workflowID, triggerType, triggeredBy, input, "")
}

func (e *Engine) start(ctx context.Context, workflowID string, triggerType models.TriggerType, triggeredBy string, input map[string]any, parentID string) (*models.WorkflowExecution, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.start",
		attribute.String(otelhelper.WorkflowIDKey, workflowID))
	defer span.End()

	definition, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if !definition.IsExecutable(triggerType) {
		return nil, fmt.Errorf("workflow %s (%s) is not executable via %s trigger",
			workflowID, definition.Status, triggerType)
	}

	execution := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		Version:     definition.Version,
		Status:      models.ExecutionStatusRunning,
		Variables:   seedVariables(definition, input),
		TriggeredBy: triggeredBy,
		TriggerType: triggerType,
		ParentID:    parentID,
		CreatedAt:   time.Now().UTC(),
	}

	startNodes := definition.StartNodes()
	if len(startNodes) != 1 {
		message := "workflow has no start node"
		if len(startNodes) > 1 {
			message = fmt.Sprintf("workflow has %d start nodes, exactly one is required", len(startNodes))
		}

		execution.Status = models.ExecutionStatusFailed
		execution.Error = &models.ExecutionError{
			Code:    models.ErrCodeNoStartNode,
			Message: message,
		}

		if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to save execution: %w", err)
		}

		return execution, fmt.Errorf("workflow %s: %s", workflowID, message)
	}

	execution.AddToFrontier(startNodes[0].ID)

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, workflowID),
		ExecutionID: execution.ID,
		TriggerType: triggerType,
		TriggeredBy: triggeredBy,
	})

	ectx := &models.ExecutionContext{
		Execution:  execution,
		Definition: definition,
		Logger:     e.logger.With("execution_id", execution.ID, "workflow_id", workflowID),
	}

	if err := e.run(ctx, ectx); err != nil {
		return execution, err
	}

	return execution, nil
}

// Resume continues a waiting execution at the given node, typically after a
// human task completed or a delay elapsed. The waiting node is treated as
// completed and the traversal advances past it; join nodes are re-dispatched
// instead so they can re-check their incoming branches.
func (e *Engine) Resume(ctx context.Context, executionID, nodeID string, resumeData map[string]any) (*models.WorkflowExecution, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.resume",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.NodeIDKey, nodeID))
	defer span.End()

	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	if execution.Status != models.ExecutionStatusWaiting && execution.Status != models.ExecutionStatusPaused {
		return nil, fmt.Errorf("execution %s is %s, not waiting", executionID, execution.Status)
	}

	definition, err := e.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	node, ok := definition.NodeByID(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %s not found in workflow %s", nodeID, execution.WorkflowID)
	}

	execution.MergeVariables(resumeData)
	execution.Status = models.ExecutionStatusRunning
	execution.WaitUntil = nil

	ectx := &models.ExecutionContext{
		Execution:  execution,
		Definition: definition,
		Logger:     e.logger.With("execution_id", execution.ID, "workflow_id", execution.WorkflowID),
		ResumeData: resumeData,
	}

	if node.Type == models.NodeTypeJoin {
		execution.AddToFrontier(nodeID)
	} else {
		execution.MarkCompleted(nodeID)

		for _, target := range e.selectNext(ectx, node, protocol.Result{}) {
			execution.AddToFrontier(target)
		}
	}

	e.publish(ctx, execution.ID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      nodeID,
	})

	if err := e.run(ctx, ectx); err != nil {
		return execution, err
	}

	return execution, nil
}

// Cancel moves a non-terminal execution to cancelled.
func (e *Engine) Cancel(ctx context.Context, executionID, cancelledBy string) (*models.WorkflowExecution, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	if execution.Status.IsTerminal() {
		return nil, fmt.Errorf("execution %s is already %s", executionID, execution.Status)
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCancelled
	execution.CompletedAt = &now

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		CancelledBy: cancelledBy,
	})

	return execution, nil
}

// RunSubworkflow starts a nested execution and blocks until it finishes.
// The child inherits the parent's trigger type so interactive runs stay
// interactive all the way down.
func (e *Engine) RunSubworkflow(ctx context.Context, workflowID string, inputs map[string]any, parentExecutionID string) (map[string]any, error) {
	parent, err := e.persistence.ExecutionRepository().GetByID(ctx, parentExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parent execution: %w", err)
	}

	child, err := e.start(ctx, workflowID, parent.TriggerType, parent.TriggeredBy, inputs, parentExecutionID)
	if err != nil {
		return nil, err
	}

	switch child.Status {
	case models.ExecutionStatusCompleted:
		return child.Output, nil
	case models.ExecutionStatusFailed:
		message := "unknown error"
		if child.Error != nil {
			message = child.Error.Message
		}

		return nil, fmt.Errorf("subworkflow execution %s failed: %s", child.ID, message)
	default:
		return nil, fmt.Errorf("subworkflow execution %s did not finish synchronously (status %s)", child.ID, child.Status)
	}
}

// run drains the node queue. Each iteration pops a node, dispatches its
// executor and folds the result back into the execution.
func (e *Engine) run(ctx context.Context, ectx *models.ExecutionContext) error {
	execution := ectx.Execution
	definition := ectx.Definition

	queue := append([]string{}, execution.CurrentNodes...)
	waitingTasks := make(map[string]string)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, ectx, "", models.ErrCodeNodeFailed, err.Error())
		}

		nodeID := queue[0]
		queue = queue[1:]

		node, ok := definition.NodeByID(nodeID)
		if !ok {
			ectx.Logger.Warn("Edge points at a missing node, skipping", "node_id", nodeID)
			execution.RemoveFromFrontier(nodeID)

			continue
		}

		if execution.HasCompleted(nodeID) {
			continue
		}

		if node.Disabled {
			ectx.Logger.Debug("Node disabled, passing through", "node_id", nodeID)
			queue = e.advance(ectx, node, protocol.Result{Status: protocol.NodeStatusSkipped}, queue)

			continue
		}

		if skip, err := e.guardSkips(ectx, node); err != nil {
			if handled, next := e.handleFailure(ctx, ectx, node, err, queue); handled {
				queue = next

				continue
			}

			return nil
		} else if skip {
			execution.AppendLog("info", nodeID, "condition guard false, node skipped")
			queue = e.advance(ectx, node, protocol.Result{Status: protocol.NodeStatusSkipped}, queue)

			continue
		}

		result := e.dispatch(ctx, ectx, node)

		switch result.Status {
		case protocol.NodeStatusCompleted, protocol.NodeStatusSkipped:
			queue = e.advance(ectx, node, result, queue)

		case protocol.NodeStatusWaiting:
			if result.WaitForTaskID != "" {
				waitingTasks[nodeID] = result.WaitForTaskID
			}

			if result.ResumeAt != nil {
				if execution.WaitUntil == nil || result.ResumeAt.Before(*execution.WaitUntil) {
					execution.WaitUntil = result.ResumeAt
				}
			}

			// The node stays in the frontier; a later resume (or a
			// sibling branch completing, for joins) re-dispatches it.

		case protocol.NodeStatusFailed:
			if handled, next := e.handleFailure(ctx, ectx, node, result.Err, queue); handled {
				queue = next

				continue
			}

			return nil
		}

		if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
			return fmt.Errorf("failed to save execution: %w", err)
		}
	}

	return e.finish(ctx, ectx, waitingTasks)
}

// dispatch runs one node executor inside a span.
func (e *Engine) dispatch(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)))
	defer span.End()

	executor, err := e.registry.CreateExecutor(node.Type)
	if err != nil {
		return protocol.Failed(err)
	}

	started := time.Now()
	result := executor.Execute(ctx, ectx, node)
	ectx.Execution.Metrics.NodesExecuted++

	durationMs := time.Since(started).Milliseconds()

	switch result.Status {
	case protocol.NodeStatusCompleted:
		e.publish(ctx, ectx.Execution.ID, events.NodeCompleted{
			BaseEvent:   events.NewBaseEvent(events.NodeCompletedEvent, ectx.Execution.WorkflowID),
			ExecutionID: ectx.Execution.ID,
			NodeID:      node.ID,
			NodeType:    node.Type,
			Output:      result.Output,
			DurationMs:  durationMs,
		})
	case protocol.NodeStatusFailed:
		otelhelper.SetError(span, result.Err,
			attribute.String(otelhelper.ExecutionIDKey, ectx.Execution.ID),
			attribute.String(otelhelper.NodeIDKey, node.ID))

		e.publish(ctx, ectx.Execution.ID, events.NodeFailed{
			BaseEvent:   events.NewBaseEvent(events.NodeFailedEvent, ectx.Execution.WorkflowID),
			ExecutionID: ectx.Execution.ID,
			NodeID:      node.ID,
			NodeType:    node.Type,
			Error:       result.Err.Error(),
		})
	}

	return result
}

// guardSkips evaluates the node-level condition guard. Branching node types
// route through their own config, so the guard only applies to the rest.
func (e *Engine) guardSkips(ectx *models.ExecutionContext, node *models.Node) (bool, error) {
	if node.Condition == "" || isBranching(node.Type) {
		return false, nil
	}

	ok, err := expr.EvalBool(node.Condition, expr.NewEnv(ectx.Execution.Variables))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate guard on node %s: %w", node.ID, err)
	}

	return !ok, nil
}

// advance marks the node completed, merges its output and enqueues its
// successors.
func (e *Engine) advance(ectx *models.ExecutionContext, node *models.Node, result protocol.Result, queue []string) []string {
	execution := ectx.Execution

	execution.MergeVariables(result.Output)
	execution.MarkCompleted(node.ID)

	for _, target := range e.selectNext(ectx, node, result) {
		if execution.HasCompleted(target) {
			continue
		}

		execution.AddToFrontier(target)

		if !contains(queue, target) {
			queue = append(queue, target)
		}
	}

	return queue
}

// selectNext picks successor node ids: the executor's pre-selected branches
// when it made a selection, otherwise the outgoing edges whose condition
// passes, highest priority first.
func (e *Engine) selectNext(ectx *models.ExecutionContext, node *models.Node, result protocol.Result) []string {
	if result.NextSelected || len(result.NextNodes) > 0 {
		return result.NextNodes
	}

	var next []string

	for _, edge := range ectx.Definition.OutgoingEdges(node.ID) {
		if edge.Condition != "" {
			ok, err := expr.EvalBool(edge.Condition, expr.NewEnv(ectx.Execution.Variables))
			if err != nil {
				ectx.Logger.Warn("Failed to evaluate edge condition, skipping edge",
					"edge_id", edge.ID, "error", err)

				continue
			}

			if !ok {
				continue
			}
		}

		next = append(next, edge.Target)
	}

	return next
}

// handleFailure applies the node's error policy. It returns the updated
// queue and true when the traversal should continue.
func (e *Engine) handleFailure(ctx context.Context, ectx *models.ExecutionContext, node *models.Node, nodeErr error, queue []string) (bool, []string) {
	execution := ectx.Execution

	policy := node.OnError
	if policy == "" {
		policy = ectx.Definition.Settings.DefaultOnError
	}

	ectx.Logger.Error("Node failed", "node_id", node.ID, "policy", string(policy), "error", nodeErr)
	execution.AppendLog("error", node.ID, nodeErr.Error())

	switch policy {
	case models.ErrorPolicyContinue:
		return true, e.advance(ectx, node, protocol.Result{Status: protocol.NodeStatusSkipped}, queue)

	case models.ErrorPolicyGoto:
		if target := node.ErrorTargetNodeID; target != "" {
			execution.MarkCompleted(node.ID)
			execution.AddToFrontier(target)

			if !contains(queue, target) {
				queue = append(queue, target)
			}

			return true, queue
		}

		fallthrough

	default:
		_ = e.fail(ctx, ectx, node.ID, models.ErrCodeNodeFailed, nodeErr.Error())

		return false, nil
	}
}

// fail marks the execution failed and persists it.
func (e *Engine) fail(ctx context.Context, ectx *models.ExecutionContext, nodeID, code, message string) error {
	execution := ectx.Execution

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.CompletedAt = &now
	execution.Error = &models.ExecutionError{NodeID: nodeID, Code: code, Message: message}
	execution.Metrics.DurationMs = now.Sub(execution.CreatedAt).Milliseconds()

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      nodeID,
		Code:        code,
		Error:       message,
	})

	return nil
}

// finish settles the execution once the queue drained: waiting when the
// frontier still holds parked nodes, completed otherwise.
func (e *Engine) finish(ctx context.Context, ectx *models.ExecutionContext, waitingTasks map[string]string) error {
	execution := ectx.Execution

	if len(execution.CurrentNodes) > 0 {
		execution.Status = models.ExecutionStatusWaiting

		if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
			return fmt.Errorf("failed to save execution: %w", err)
		}

		taskIDs := make([]string, 0, len(waitingTasks))
		for _, taskID := range waitingTasks {
			taskIDs = append(taskIDs, taskID)
		}

		e.publish(ctx, execution.ID, events.ExecutionWaiting{
			BaseEvent:    events.NewBaseEvent(events.ExecutionWaitingEvent, execution.WorkflowID),
			ExecutionID:  execution.ID,
			WaitingNodes: append([]string{}, execution.CurrentNodes...),
			TaskIDs:      taskIDs,
		})

		return nil
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now
	execution.Metrics.DurationMs = now.Sub(execution.CreatedAt).Milliseconds()

	// Completion output is the full variable context unless an end node
	// already mapped an explicit subset.
	if execution.Output == nil {
		execution.Output = execution.Variables
	}

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		Output:      execution.Output,
		DurationMs:  execution.Metrics.DurationMs,
	})

	return nil
}

func (e *Engine) publish(ctx context.Context, key string, event events.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish event", "event_type", string(event.GetType()), "error", err)
	}
}

// seedVariables layers trigger input over the declared defaults.
func seedVariables(definition *models.WorkflowDefinition, input map[string]any) map[string]any {
	variables := make(map[string]any, len(definition.Variables)+len(input))

	for _, declared := range definition.Variables {
		if declared.DefaultValue != nil {
			variables[declared.Name] = declared.DefaultValue
		}
	}

	for k, v := range input {
		variables[k] = v
	}

	return variables
}

func isBranching(nodeType models.NodeType) bool {
	switch nodeType {
	case models.NodeTypeDecision, models.NodeTypeSwitch, models.NodeTypeBusinessRule:
		return true
	default:
		return false
	}
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}

	return false
}
