package graph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ontogov/internal/ontology"
	"ontogov/pkg/logger"
)

// ============================================================================
// Self-Describing Schema Registry
// ============================================================================

// SchemaRegistry records observed node and relationship shapes into the
// graph as metadata. Pure bookkeeping: nothing reads these nodes to make
// decisions.
type SchemaRegistry struct {
	store  Store
	conv   ontology.Conventions
	logger *zap.Logger
}

// NewSchemaRegistry creates a schema registry over the given store
func NewSchemaRegistry(store Store, conv ontology.Conventions) *SchemaRegistry {
	return &SchemaRegistry{
		store:  store,
		conv:   conv,
		logger: logger.Named("schema"),
	}
}

// RecordNodeType upserts metadata describing a node label and its observed
// property names.
func (r *SchemaRegistry) RecordNodeType(ctx context.Context, name string, properties []string) error {
	query := `
		MERGE (t:SchemaNodeType {name: $name})
		SET t.properties = $properties,
		    t.observed_at = datetime($now)
	`
	_, err := r.store.Run(ctx, query, map[string]interface{}{
		"name":       name,
		"properties": properties,
		"now":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to record node type: %w", err)
	}
	return nil
}

// RecordRelationshipType upserts metadata describing a relationship type and
// its observed property names.
func (r *SchemaRegistry) RecordRelationshipType(ctx context.Context, name string, properties []string) error {
	query := `
		MERGE (t:SchemaRelationshipType {name: $name})
		SET t.properties = $properties,
		    t.observed_at = datetime($now)
	`
	_, err := r.store.Run(ctx, query, map[string]interface{}{
		"name":       name,
		"properties": properties,
		"now":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to record relationship type: %w", err)
	}
	return nil
}
