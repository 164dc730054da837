package store

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ontoforge.dev/ontology"
)

// GraphStore caches the relationship topology of each ontology's current IR as a
// property graph: objects as nodes, relationships as directed edges. It is
// never a source of truth. Nothing in the pipeline calls it: create_version
// does not rebuild it, and the Diff Engine and Compiler work from the IR
// directly.
type GraphStore struct {
	driver neo4j.DriverWithContext
}

// NewGraphStore connects to Neo4j and verifies connectivity.
func NewGraphStore(ctx context.Context, uri, username, password string) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return &GraphStore{driver: driver}, nil
}

// Close releases the driver's connections.
func (g *GraphStore) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// RebuildTopology replaces the cached graph for ontologyID with ir's current
// objects and relationships.
func (g *GraphStore) RebuildTopology(ctx context.Context, ontologyID string, ir *ontology.IR) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (n:Object {ontologyId: $ontologyId}) DETACH DELETE n`,
			map[string]any{"ontologyId": ontologyID}); err != nil {
			return nil, fmt.Errorf("clear prior topology: %w", err)
		}

		for _, obj := range ir.Objects {
			_, err := tx.Run(ctx, `MERGE (o:Object {ontologyId: $ontologyId, name: $name})`,
				map[string]any{"ontologyId": ontologyID, "name": obj.Name})
			if err != nil {
				return nil, fmt.Errorf("create object node %s: %w", obj.Name, err)
			}
		}

		for _, rel := range ir.Relationships {
			query := `
				MATCH (from:Object {ontologyId: $ontologyId, name: $from})
				MATCH (to:Object {ontologyId: $ontologyId, name: $to})
				MERGE (from)-[r:RELATES {name: $name}]->(to)
				SET r.cardinality = $cardinality
			`
			_, err := tx.Run(ctx, query, map[string]any{
				"ontologyId":  ontologyID,
				"from":        rel.From,
				"to":          rel.To,
				"name":        rel.Name,
				"cardinality": rel.Cardinality,
			})
			if err != nil {
				return nil, fmt.Errorf("create relationship edge %s: %w", rel.Name, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("rebuild topology for %s: %w", ontologyID, err)
	}
	return nil
}

// HasCycle reports whether the cached relationship graph for ontologyID contains
// a cycle. The Compiler does not call it; its join ordering detects cycles on
// the IR itself (compiler/joinorder.go).
func (g *GraphStore) HasCycle(ctx context.Context, ontologyID string) (bool, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n:Object {ontologyId: $ontologyId})
			MATCH path = (n)-[:RELATES*]->(n)
			RETURN count(path) > 0 AS hasCycle
			LIMIT 1
		`
		res, err := tx.Run(ctx, query, map[string]any{"ontologyId": ontologyID})
		if err != nil {
			return false, err
		}
		if res.Next(ctx) {
			return res.Record().Values[0].(bool), nil
		}
		return false, res.Err()
	})
	if err != nil {
		return false, fmt.Errorf("check cycle for %s: %w", ontologyID, err)
	}
	return result.(bool), nil
}

// EquivalentPosition reports whether two objects occupy structurally equivalent
// positions in the relationship graph (same set of neighboring relationship
// names). The diff engine's object.renamed heuristic does not call it; that
// heuristic uses only the identifier/property-overlap rule on the two IRs.
func (g *GraphStore) EquivalentPosition(ctx context.Context, ontologyID, objA, objB string) (bool, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:Object {ontologyId: $ontologyId, name: $objA})-[ra:RELATES]-()
			WITH collect(DISTINCT ra.name) AS relsA
			MATCH (b:Object {ontologyId: $ontologyId, name: $objB})-[rb:RELATES]-()
			WITH relsA, collect(DISTINCT rb.name) AS relsB
			RETURN relsA = relsB AS equivalent
		`
		res, err := tx.Run(ctx, query, map[string]any{"ontologyId": ontologyID, "objA": objA, "objB": objB})
		if err != nil {
			return false, err
		}
		if res.Next(ctx) {
			return res.Record().Values[0].(bool), nil
		}
		return false, res.Err()
	})
	if err != nil {
		return false, fmt.Errorf("compare graph position %s/%s: %w", objA, objB, err)
	}
	return result.(bool), nil
}
