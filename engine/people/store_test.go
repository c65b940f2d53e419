package people

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/heimdex/heimdex-engine/engine/domain"
)

type fakeResult struct {
	records []*neo4j.Record
	idx     int
	err     error
}

func (f *fakeResult) Next(context.Context) bool {
	if f.idx >= len(f.records) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeResult) Record() *neo4j.Record { return f.records[f.idx-1] }
func (f *fakeResult) Err() error            { return f.err }

type fakeRunner struct {
	cypher string
	params map[string]any
	result *fakeResult
	err    error
	closed bool
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) (result, error) {
	f.cypher = cypher
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		f.result = &fakeResult{}
	}
	return f.result, nil
}

func (f *fakeRunner) Close(context.Context) error {
	f.closed = true
	return nil
}

func storeWith(r *fakeRunner) *Store {
	s := New(nil)
	s.newSession = func(context.Context) runner { return r }
	return s
}

func personRecord(id, name string, embedding []any) *neo4j.Record {
	return &neo4j.Record{
		Keys: []string{"p"},
		Values: []any{dbtype.Node{
			Props: map[string]any{"id": id, "name": name, "embedding": embedding},
		}},
	}
}

func TestListByOwner(t *testing.T) {
	r := &fakeRunner{result: &fakeResult{records: []*neo4j.Record{
		personRecord("p1", "Jane", []any{0.1, 0.2}),
		personRecord("p2", "김철수", nil),
	}}}
	s := storeWith(r)

	persons, err := s.ListByOwner(context.Background(), "o1")
	if err != nil {
		t.Fatal(err)
	}
	if len(persons) != 2 {
		t.Fatalf("len = %d, want 2", len(persons))
	}
	if persons[0].ID != "p1" || persons[0].Name != "Jane" || persons[0].OwnerID != "o1" {
		t.Errorf("persons[0] = %+v", persons[0])
	}
	if len(persons[0].Embedding) != 2 || persons[0].Embedding[1] != float32(0.2) {
		t.Errorf("embedding = %v", persons[0].Embedding)
	}
	if persons[1].Name != "김철수" {
		t.Errorf("persons[1] = %+v", persons[1])
	}
	if r.params["owner"] != "o1" {
		t.Errorf("params = %v", r.params)
	}
	if !r.closed {
		t.Error("session not closed")
	}
}

func TestListByOwnerRunError(t *testing.T) {
	boom := errors.New("db down")
	s := storeWith(&fakeRunner{err: boom})
	if _, err := s.ListByOwner(context.Background(), "o1"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestSavePersonParams(t *testing.T) {
	r := &fakeRunner{}
	s := storeWith(r)

	err := s.SavePerson(context.Background(), domain.Person{
		ID: "p1", OwnerID: "o1", Name: "Jane", Embedding: []float32{0.5, 0.25},
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.params["id"] != "p1" || r.params["name"] != "Jane" || r.params["owner"] != "o1" {
		t.Errorf("params = %v", r.params)
	}
	list, ok := r.params["embedding"].([]any)
	if !ok || len(list) != 2 {
		t.Errorf("embedding param = %v", r.params["embedding"])
	}
}

func TestDeletePerson(t *testing.T) {
	r := &fakeRunner{}
	s := storeWith(r)
	if err := s.DeletePerson(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if r.params["id"] != "p1" {
		t.Errorf("params = %v", r.params)
	}
}
