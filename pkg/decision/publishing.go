package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
)

// Publishing validation errors.
var (
	ErrNoInputs        = errors.New("cannot publish a table with no inputs")
	ErrNoOutputs       = errors.New("cannot publish a table with no outputs")
	ErrNoRules         = errors.New("cannot publish a table with no rules")
	ErrDuplicateName   = errors.New("duplicate input or output name")
	ErrAlreadyArchived = errors.New("cannot publish an archived table")
)

// PublishingService handles decision table lifecycle transitions. Structural
// invariants are enforced here, at publish time, not continuously.
type PublishingService struct {
	tables persistence.DecisionTableRepository
}

// NewPublishingService creates a table publishing service.
func NewPublishingService(tables persistence.DecisionTableRepository) *PublishingService {
	return &PublishingService{tables: tables}
}

// Publish validates the table, increments its version and snapshots the
// publication metadata.
func (s *PublishingService) Publish(ctx context.Context, tableID, publishedBy string) (*models.DecisionTable, error) {
	table, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get table for publishing: %w", err)
	}

	if err := ValidateForPublishing(table); err != nil {
		return nil, fmt.Errorf("table validation failed: %w", err)
	}

	now := time.Now().UTC()
	table.Status = models.TableStatusPublished
	table.Version++
	table.PublishedAt = &now
	table.PublishedBy = publishedBy
	table.UpdatedAt = now

	if err := s.tables.Save(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to save published table: %w", err)
	}

	return table, nil
}

// Unpublish reverts the table to draft without touching its rules.
func (s *PublishingService) Unpublish(ctx context.Context, tableID string) (*models.DecisionTable, error) {
	table, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	if table.Status != models.TableStatusPublished {
		return nil, fmt.Errorf("table %s is not published", tableID)
	}

	table.Status = models.TableStatusDraft
	table.PublishedAt = nil
	table.PublishedBy = ""
	table.UpdatedAt = time.Now().UTC()

	if err := s.tables.Save(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to save table after unpublishing: %w", err)
	}

	return table, nil
}

// ValidateForPublishing checks the structural invariants published tables
// must satisfy: at least one input, output and rule, and unique names.
func ValidateForPublishing(table *models.DecisionTable) error {
	if table.Status == models.TableStatusArchived {
		return ErrAlreadyArchived
	}

	if len(table.Inputs) == 0 {
		return ErrNoInputs
	}

	if len(table.Outputs) == 0 {
		return ErrNoOutputs
	}

	if len(table.Rules) == 0 {
		return ErrNoRules
	}

	seen := make(map[string]bool, len(table.Inputs))

	for _, input := range table.Inputs {
		if seen[input.Name] {
			return fmt.Errorf("%w: input %q", ErrDuplicateName, input.Name)
		}

		seen[input.Name] = true
	}

	seen = make(map[string]bool, len(table.Outputs))

	for _, output := range table.Outputs {
		if seen[output.Name] {
			return fmt.Errorf("%w: output %q", ErrDuplicateName, output.Name)
		}

		seen[output.Name] = true
	}

	return nil
}
