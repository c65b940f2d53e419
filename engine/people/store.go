// Package people provides the Neo4j-backed person identity store. It supplies
// the per-owner person listings the query parser builds its directory from.
package people

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/heimdex/heimdex-engine/engine/domain"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Store provides person persistence and lookup.
type Store struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // for testing
}

// New creates a Store backed by the given driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// neo4jSessionAdapter adapts neo4j.SessionWithContext to the runner interface.
type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (s *Store) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// SavePerson creates or updates a person node and links it to its owner.
func (s *Store) SavePerson(ctx context.Context, p domain.Person) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (p:Person {id: $id})
		 SET p.name = $name, p.embedding = $embedding
		 MERGE (o:Owner {id: $owner})
		 MERGE (o)-[:KNOWS]->(p)`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"owner":     p.OwnerID,
		"embedding": embeddingToList(p.Embedding),
	})
	if err != nil {
		return fmt.Errorf("people: save person %s: %w", p.ID, err)
	}
	return nil
}

// ListByOwner returns all persons known to one owner, in insertion order, for
// directory construction.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]domain.Person, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (o:Owner {id: $owner})-[:KNOWS]->(p:Person)
		 RETURN p ORDER BY p.created_at, p.id`
	res, err := sess.Run(ctx, cypher, map[string]any{"owner": ownerID})
	if err != nil {
		return nil, fmt.Errorf("people: list by owner %s: %w", ownerID, err)
	}

	var persons []domain.Person
	for res.Next(ctx) {
		p, err := personFromRecord(res.Record(), ownerID)
		if err != nil {
			return nil, fmt.Errorf("people: decode person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("people: list by owner %s: %w", ownerID, err)
	}
	return persons, nil
}

// DeletePerson removes a person node and its relationships.
func (s *Store) DeletePerson(ctx context.Context, id string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MATCH (p:Person {id: $id}) DETACH DELETE p`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("people: delete person %s: %w", id, err)
	}
	return nil
}

// personFromRecord maps a returned node onto a domain.Person.
func personFromRecord(rec *neo4j.Record, ownerID string) (domain.Person, error) {
	val, ok := rec.Get("p")
	if !ok {
		return domain.Person{}, fmt.Errorf("record missing node %q", "p")
	}
	node, ok := val.(dbtype.Node)
	if !ok {
		return domain.Person{}, fmt.Errorf("unexpected record value %T", val)
	}

	p := domain.Person{OwnerID: ownerID}
	if id, ok := node.Props["id"].(string); ok {
		p.ID = id
	}
	if name, ok := node.Props["name"].(string); ok {
		p.Name = name
	}
	if raw, ok := node.Props["embedding"].([]any); ok {
		p.Embedding = listToEmbedding(raw)
	}
	return p, nil
}

// Neo4j stores numeric lists as []any of float64.
func embeddingToList(embedding []float32) []any {
	if len(embedding) == 0 {
		return nil
	}
	out := make([]any, len(embedding))
	for i, v := range embedding {
		out[i] = float64(v)
	}
	return out
}

func listToEmbedding(raw []any) []float32 {
	out := make([]float32, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}
