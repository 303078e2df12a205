// Package cmd provides the shared wiring used by the FlowForge binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence/file"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence layer from a database URL.
// postgres:// URLs get PostgreSQL; anything else is treated as a directory
// for file persistence.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	}

	return file.NewPersistence(databaseURL), nil
}
