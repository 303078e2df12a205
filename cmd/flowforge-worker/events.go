package main

import (
	"context"
	"fmt"
	"log/slog"

	appcmd "github.com/Nirvasoft/FlowForge-sub003/pkg/cmd"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/events"
)

// registerEventLogging mirrors engine and task events into the worker log.
// Handlers never fail: a logging consumer must not nack bus messages.
func registerEventLogging(stack *appcmd.Stack, logger *slog.Logger) error {
	handlers := map[events.EventType]func(event any){
		events.ExecutionStartedEvent: func(event any) {
			if e, ok := event.(*events.ExecutionStarted); ok {
				logger.Info("Execution started",
					"execution_id", e.ExecutionID,
					"workflow_id", e.WorkflowID,
					"trigger_type", e.TriggerType,
				)
			}
		},
		events.ExecutionCompletedEvent: func(event any) {
			if e, ok := event.(*events.ExecutionCompleted); ok {
				logger.Info("Execution completed",
					"execution_id", e.ExecutionID,
					"workflow_id", e.WorkflowID,
					"duration_ms", e.DurationMs,
				)
			}
		},
		events.ExecutionFailedEvent: func(event any) {
			if e, ok := event.(*events.ExecutionFailed); ok {
				logger.Error("Execution failed",
					"execution_id", e.ExecutionID,
					"workflow_id", e.WorkflowID,
					"node_id", e.NodeID,
					"error", e.Error,
				)
			}
		},
		events.ExecutionWaitingEvent: func(event any) {
			if e, ok := event.(*events.ExecutionWaiting); ok {
				logger.Info("Execution waiting",
					"execution_id", e.ExecutionID,
					"waiting_nodes", e.WaitingNodes,
					"task_ids", e.TaskIDs,
				)
			}
		},
		events.ExecutionResumedEvent: func(event any) {
			if e, ok := event.(*events.ExecutionResumed); ok {
				logger.Info("Execution resumed",
					"execution_id", e.ExecutionID,
					"node_id", e.NodeID,
					"task_id", e.TaskID,
				)
			}
		},
		events.ExecutionCancelledEvent: func(event any) {
			if e, ok := event.(*events.ExecutionCancelled); ok {
				logger.Info("Execution cancelled",
					"execution_id", e.ExecutionID,
					"cancelled_by", e.CancelledBy,
				)
			}
		},
		events.TaskCreatedEvent: func(event any) {
			if e, ok := event.(*events.TaskCreated); ok {
				logger.Info("Task created",
					"task_id", e.TaskID,
					"execution_id", e.ExecutionID,
					"task_type", e.TaskType,
					"assignees", e.Assignees,
				)
			}
		},
		events.TaskCompletedEvent: func(event any) {
			if e, ok := event.(*events.TaskCompleted); ok {
				logger.Info("Task completed",
					"task_id", e.TaskID,
					"execution_id", e.ExecutionID,
					"outcome", e.Outcome,
					"completed_by", e.CompletedBy,
				)
			}
		},
		events.TableEvaluatedEvent: func(event any) {
			if e, ok := event.(*events.TableEvaluated); ok {
				logger.Info("Decision table evaluated",
					"table_id", e.TableID,
					"table_version", e.TableVersion,
					"success", e.Success,
					"duration_ms", e.DurationMs,
				)
			}
		},
	}

	for eventType, logEvent := range handlers {
		handler := logEvent
		if err := stack.EventBus.Handle(eventType, func(_ context.Context, event any) error {
			handler(event)

			return nil
		}); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return nil
}
