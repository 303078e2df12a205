package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/eventbus"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/approval"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/businessrule"
	decisionnode "github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/delay"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/end"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/form"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/nodes/httprequest"
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
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/registry"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/services"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/workflow"
)

// Config carries the runtime configuration shared by the binaries.
type Config struct {
	DatabaseURL      string
	EventBusProvider string
	RedisURL         string
	EvalLogSize      int
}

// Stack is the fully wired application: persistence, event bus, engines,
// services and the node registry.
type Stack struct {
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Engine      *workflow.Engine
	Registry    *registry.Registry
	EvalLog     *decision.EvalLog

	Workflows  *services.Workflow
	Executions *services.Execution
	Tasks      *services.Task
	Decisions  *services.Decision
}

// NewStack wires the whole application. The engine and the registry
// reference each other (subworkflows run through the engine), so the
// registry is attached after construction.
func NewStack(ctx context.Context, logger *slog.Logger, cfg Config) (*Stack, error) {
	store, err := NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build persistence: %w", err)
	}

	bus, err := NewEventBus(cfg.EventBusProvider, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build event bus: %w", err)
	}

	evalLog := decision.NewEvalLog(cfg.EvalLogSize)

	decisionOpts := []decision.Option{decision.WithEvalLog(evalLog)}

	if cfg.RedisURL != "" {
		cache, err := decision.NewRedisCache(cfg.RedisURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build decision cache: %w", err)
		}

		decisionOpts = append(decisionOpts, decision.WithCache(cache))
	}

	engine := workflow.NewEngine(store, bus, logger)
	taskService := services.NewTask(store, engine, bus)
	decisionService := services.NewDecision(store, decision.NewEngine(logger, decisionOpts...), bus)

	reg := registry.NewRegistry(logger, protocol.Dependencies{
		TaskCreator:       taskService,
		DecisionEvaluator: decisionService,
		SubworkflowRunner: engine,
	})
	registerNodes(reg)
	engine.SetRegistry(reg)

	return &Stack{
		Persistence: store,
		EventBus:    bus,
		Engine:      engine,
		Registry:    reg,
		EvalLog:     evalLog,
		Workflows:   services.NewWorkflow(store, workflow.NewPublishingService(store.WorkflowRepository(), bus)),
		Executions:  services.NewExecution(store, engine),
		Tasks:       taskService,
		Decisions:   decisionService,
	}, nil
}

// Close shuts down the stack's external connections.
func (s *Stack) Close(ctx context.Context) error {
	if err := s.EventBus.Close(); err != nil {
		return fmt.Errorf("failed to close event bus: %w", err)
	}

	if err := s.Persistence.Close(ctx); err != nil {
		return fmt.Errorf("failed to close persistence: %w", err)
	}

	return nil
}

func registerNodes(reg *registry.Registry) {
	for _, factory := range []protocol.NodeFactory{
		start.NewFactory(),
		end.NewFactory(),
		task.NewFactory(),
		lognode.NewFactory(),
		setvariable.NewFactory(),
		httprequest.NewFactory(),
		decisionnode.NewFactory(),
		businessrule.NewFactory(),
		switchnode.NewFactory(),
		loop.NewFactory(),
		delay.NewFactory(),
		parallel.NewFactory(),
		join.NewFactory(),
		approval.NewFactory(),
		form.NewFactory(),
		subworkflow.NewFactory(),
	} {
		reg.RegisterNode(factory)
	}
}
