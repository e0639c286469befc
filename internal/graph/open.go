package graph

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config selects and configures a Store backend.
type Config struct {
	Backend      string
	SQLitePath   string
	SQLiteDriver string
	Neo4j        Neo4jConfig
}

// Open connects the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, cfg.SQLiteDriver)
	case BackendNeo4j:
		return OpenNeo4j(ctx, cfg.Neo4j)
	default:
		return nil, fmt.Errorf("graph: unknown backend %q", cfg.Backend)
	}
}
