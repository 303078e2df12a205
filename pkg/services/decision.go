package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/eventbus"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/events"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
)

// ErrTableNotFound is returned when a decision table is not found.
var ErrTableNotFound = persistence.ErrTableNotFound

// Decision manages decision tables and serves evaluations. It implements
// the table evaluator port used by workflow nodes.
type Decision struct {
	persistence persistence.Persistence
	engine      *decision.Engine
	publishing  *decision.PublishingService
	publisher   eventbus.EventPublisher
}

// NewDecision creates a new decision table service.
func NewDecision(p persistence.Persistence, engine *decision.Engine, publisher eventbus.EventPublisher) *Decision {
	return &Decision{
		persistence: p,
		engine:      engine,
		publishing:  decision.NewPublishingService(p.DecisionTableRepository()),
		publisher:   publisher,
	}
}

// Create stores a new draft table.
func (s *Decision) Create(ctx context.Context, table *models.DecisionTable) (*models.DecisionTable, error) {
	if table == nil {
		return nil, ErrTableNil
	}

	if table.Name == "" {
		return nil, ErrTableNameRequired
	}

	now := time.Now().UTC()
	table.ID = uuid.New().String()
	table.Status = models.TableStatusDraft
	table.Version = 0
	table.CreatedAt = now
	table.UpdatedAt = now

	if err := s.persistence.DecisionTableRepository().Save(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to create decision table: %w", err)
	}

	return table, nil
}

// Get loads a table by id.
func (s *Decision) Get(ctx context.Context, id string) (*models.DecisionTable, error) {
	return s.persistence.DecisionTableRepository().GetByID(ctx, id)
}

// List returns all tables, newest first.
func (s *Decision) List(ctx context.Context) ([]*models.DecisionTable, error) {
	tables, err := s.persistence.DecisionTableRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision tables: %w", err)
	}

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].CreatedAt.After(tables[j].CreatedAt)
	})

	return tables, nil
}

// Update replaces a draft table. Published tables are immutable.
func (s *Decision) Update(ctx context.Context, table *models.DecisionTable) (*models.DecisionTable, error) {
	if table == nil {
		return nil, ErrTableNil
	}

	existing, err := s.persistence.DecisionTableRepository().GetByID(ctx, table.ID)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.TableStatusPublished {
		return nil, ErrCannotModifyPublished
	}

	table.Status = existing.Status
	table.Version = existing.Version
	table.CreatedAt = existing.CreatedAt
	table.UpdatedAt = time.Now().UTC()

	if err := s.persistence.DecisionTableRepository().Save(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to update decision table: %w", err)
	}

	return table, nil
}

// Delete removes a table.
func (s *Decision) Delete(ctx context.Context, id string) error {
	existing, err := s.persistence.DecisionTableRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if existing.Status == models.TableStatusPublished {
		return ErrCannotDeletePublished
	}

	return s.persistence.DecisionTableRepository().Delete(ctx, id)
}

// Publish validates and publishes a table.
func (s *Decision) Publish(ctx context.Context, id, publishedBy string) (*models.DecisionTable, error) {
	table, err := s.publishing.Publish(ctx, id, publishedBy)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, table.ID, events.TablePublished{
		BaseEvent:   events.NewBaseEvent(events.TablePublishedEvent, ""),
		TableID:     table.ID,
		Version:     table.Version,
		PublishedBy: publishedBy,
	})

	return table, nil
}

// Unpublish reverts a table to draft.
func (s *Decision) Unpublish(ctx context.Context, id string) (*models.DecisionTable, error) {
	return s.publishing.Unpublish(ctx, id)
}

// Evaluate runs a table by id against the input bag.
func (s *Decision) Evaluate(ctx context.Context, tableID string, inputs map[string]any, source string) (*models.EvaluationResult, error) {
	return s.EvaluateTable(ctx, tableID, inputs, source)
}

// EvaluateBySlug runs a table addressed by its slug.
func (s *Decision) EvaluateBySlug(ctx context.Context, slug string, inputs map[string]any, source string) (*models.EvaluationResult, error) {
	table, err := s.persistence.DecisionTableRepository().GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	return s.evaluate(ctx, table, inputs, source)
}

// EvaluateTable implements the evaluator port for workflow nodes. The table
// reference is resolved as an id first, then as a slug.
func (s *Decision) EvaluateTable(ctx context.Context, tableRef string, inputs map[string]any, source string) (*models.EvaluationResult, error) {
	table, err := s.persistence.DecisionTableRepository().GetByID(ctx, tableRef)
	if persistence.IsTableNotFound(err) {
		table, err = s.persistence.DecisionTableRepository().GetBySlug(ctx, tableRef)
	}

	if err != nil {
		return nil, err
	}

	return s.evaluate(ctx, table, inputs, source)
}

func (s *Decision) evaluate(ctx context.Context, table *models.DecisionTable, inputs map[string]any, source string) (*models.EvaluationResult, error) {
	result, err := s.engine.Evaluate(ctx, table, inputs, source)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, table.ID, events.TableEvaluated{
		BaseEvent:    events.NewBaseEvent(events.TableEvaluatedEvent, ""),
		TableID:      table.ID,
		TableVersion: table.Version,
		Success:      result.Success,
		MatchedRules: result.MatchedRules,
		Source:       source,
		DurationMs:   result.DurationMs,
	})

	return result, nil
}

func (s *Decision) publish(ctx context.Context, key string, event events.Event) {
	if s.publisher == nil {
		return
	}

	_ = s.publisher.Publish(ctx, key, event)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
