package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
)

// DecisionTableRepository stores decision tables.
type DecisionTableRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDecisionTableRepository(db *sql.DB, logger *slog.Logger) *DecisionTableRepository {
	return &DecisionTableRepository{db: db, logger: logger}
}

func (r *DecisionTableRepository) Save(ctx context.Context, table *models.DecisionTable) error {
	document, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode decision table: %w", err)
	}

	query := `
		INSERT INTO decision_tables (id, slug, name, status, version, document, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`

	_, err = r.db.ExecContext(ctx, query,
		table.ID, nullable(table.Slug), table.Name, string(table.Status), table.Version,
		document, table.CreatedAt, table.UpdatedAt, table.PublishedAt)
	if err != nil {
		return persistence.NewStoreError("Save", "table", table.ID, err)
	}

	return nil
}

func (r *DecisionTableRepository) GetByID(ctx context.Context, id string) (*models.DecisionTable, error) {
	return r.getBy(ctx, `SELECT document FROM decision_tables WHERE id = $1`, id)
}

func (r *DecisionTableRepository) GetBySlug(ctx context.Context, slug string) (*models.DecisionTable, error) {
	return r.getBy(ctx, `SELECT document FROM decision_tables WHERE slug = $1`, slug)
}

func (r *DecisionTableRepository) getBy(ctx context.Context, query, key string) (*models.DecisionTable, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, query, key).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrTableNotFound
	}

	if err != nil {
		return nil, persistence.NewStoreError("Get", "table", key, err)
	}

	return decodeTable(document, key)
}

func (r *DecisionTableRepository) GetAll(ctx context.Context) ([]*models.DecisionTable, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document FROM decision_tables ORDER BY created_at DESC`)
	if err != nil {
		return nil, persistence.NewStoreError("GetAll", "table", "", err)
	}
	defer rows.Close()

	var tables []*models.DecisionTable

	for rows.Next() {
		var document []byte

		if err := rows.Scan(&document); err != nil {
			return nil, persistence.NewStoreError("GetAll", "table", "", err)
		}

		table, err := decodeTable(document, "")
		if err != nil {
			return nil, err
		}

		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("GetAll", "table", "", err)
	}

	return tables, nil
}

func (r *DecisionTableRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM decision_tables WHERE id = $1`, id)
	if err != nil {
		return persistence.NewStoreError("Delete", "table", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "table", id, err)
	}

	if affected == 0 {
		return persistence.ErrTableNotFound
	}

	return nil
}

func decodeTable(document []byte, id string) (*models.DecisionTable, error) {
	var table models.DecisionTable

	if err := json.Unmarshal(document, &table); err != nil {
		return nil, persistence.NewStoreError("decode", "table", id, err)
	}

	return &table, nil
}
