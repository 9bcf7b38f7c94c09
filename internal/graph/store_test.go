package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// These tests require a running Neo4j instance at bolt://localhost:7687
// and are skipped under -short.

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := "bolt://localhost:7687"
	user := "neo4j"
	password := "password"

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}

func TestNeo4jStore_RunRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	store := NewNeo4jStore(driver)
	nodeID := "test-concept-" + time.Now().Format("20060102150405")

	defer func() {
		_, _ = store.Run(ctx, "MATCH (c:Concept {id: $id}) DETACH DELETE c", map[string]interface{}{"id": nodeID})
	}()

	_, err = store.Run(ctx, "CREATE (c:Concept {id: $id, status: $status, cohesion_score: $cohesion})", map[string]interface{}{
		"id":       nodeID,
		"status":   "proposed",
		"cohesion": 0.75,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	records, err := store.Run(ctx, "MATCH (c:Concept {id: $id}) RETURN c.status AS status, c.cohesion_score AS cohesion", map[string]interface{}{"id": nodeID})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if got := GetString(records[0], "status"); got != "proposed" {
		t.Errorf("Expected status 'proposed', got '%s'", got)
	}
	if got := GetFloat64(records[0], "cohesion"); got != 0.75 {
		t.Errorf("Expected cohesion 0.75, got %f", got)
	}
}

func TestNeo4jStore_RunInTxRollsBackOnError(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	store := NewNeo4jStore(driver)
	nodeID := "test-rollback-" + time.Now().Format("20060102150405")

	defer func() {
		_, _ = store.Run(ctx, "MATCH (c:Concept {id: $id}) DETACH DELETE c", map[string]interface{}{"id": nodeID})
	}()

	wantErr := errors.New("abort")
	err = store.RunInTx(ctx, func(tx Tx) error {
		if _, err := tx.Run(ctx, "CREATE (c:Concept {id: $id})", map[string]interface{}{"id": nodeID}); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("Expected transaction error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected wrapped abort error, got: %v", err)
	}

	records, err := store.Run(ctx, "MATCH (c:Concept {id: $id}) RETURN c.id AS id", map[string]interface{}{"id": nodeID})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected rollback to discard the node, found %d records", len(records))
	}
}

func TestNeo4jStore_RunInTxCommits(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	store := NewNeo4jStore(driver)
	conceptID := "test-commit-" + time.Now().Format("20060102150405")
	particularID := conceptID + "-p"

	defer func() {
		_, _ = store.Run(ctx, "MATCH (p:Particular {id: $pid})-[r]->(c:Concept {id: $cid}) DELETE r, p, c", map[string]interface{}{
			"pid": particularID,
			"cid": conceptID,
		})
	}()

	err = store.RunInTx(ctx, func(tx Tx) error {
		if _, err := tx.Run(ctx, "CREATE (c:Concept {id: $id, status: 'proposed'})", map[string]interface{}{"id": conceptID}); err != nil {
			return err
		}
		_, err := tx.Run(ctx, `
			MATCH (c:Concept {id: $cid})
			CREATE (p:Particular {id: $pid})-[:CANDIDATE_INSTANCE_OF]->(c)
		`, map[string]interface{}{"cid": conceptID, "pid": particularID})
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	records, err := store.Run(ctx, `
		MATCH (p:Particular {id: $pid})-[:CANDIDATE_INSTANCE_OF]->(c:Concept {id: $cid})
		RETURN count(p) AS found
	`, map[string]interface{}{"pid": particularID, "cid": conceptID})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 || GetInt(records[0], "found") != 1 {
		t.Error("Expected committed candidate edge")
	}
}
