package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Bootstrap creates all required infrastructure for the DynamoDB identity store.
// If CleanResources is true, deletes existing resources first to ensure clean state
// If CleanResources is false, creates resources only if they don't exist (preserves data)
func Bootstrap(ctx context.Context, cfg Config) (*Resources, error) {
	if cfg.DynamoClient == nil {
		return nil, fmt.Errorf("DynamoClient is required")
	}
	if cfg.Environment == "" {
		cfg.Environment = "dev" // Default environment
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = IdentityTableName(cfg.Environment)
	}

	if err := CreateIdentityTable(ctx, cfg.DynamoClient, tableName, cfg.CleanResources); err != nil {
		return nil, fmt.Errorf("failed to create identity table: %w", err)
	}

	log.Info().Str("table", tableName).Bool("clean", cfg.CleanResources).Msg("identity table ready")

	return &Resources{IdentityTable: tableName}, nil
}
