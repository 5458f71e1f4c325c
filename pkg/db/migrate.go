package db

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaDDL string

// Schema returns the DDL for the analysis, tags, analysis_tags and search_history tables.
func Schema() string {
	return schemaDDL
}

// EnsureSchema creates the tables and indexes if they do not exist.
// Every statement is idempotent, so it is safe to run on each start.
func EnsureSchema(ctx context.Context, p DBProvider) error {
	if p == nil || p.DB() == nil {
		return fmt.Errorf("ensure schema: %w", ErrNotConfigured)
	}
	if _, err := p.DB().ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
