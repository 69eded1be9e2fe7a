package lineage

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type mockResult struct {
	records []*neo4j.Record
	idx     int
}

func (m *mockResult) Next(ctx context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record { return m.records[m.idx-1] }

type mockRunner struct {
	result  *mockResult
	err     error
	cyphers []string
	params  []map[string]any
}

func (m *mockRunner) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	m.cyphers = append(m.cyphers, cypher)
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockRunner) Close(ctx context.Context) error { return nil }

type entity struct {
	ID   string
	Name string
}

func makeRecord(id, name string) *neo4j.Record {
	return &neo4j.Record{Values: []any{map[string]any{"id": id, "name": name}}, Keys: []string{"n"}}
}

func newTestRepo(r *mockRunner) *Neo4jRepo[entity, string] {
	repo := NewNeo4jRepo[entity, string](
		nil, "Entity",
		func(e entity) map[string]any { return map[string]any{"id": e.ID, "name": e.Name} },
		func(rec *neo4j.Record) (entity, error) {
			m, ok := rec.Values[0].(map[string]any)
			if !ok {
				return entity{}, errors.New("bad type")
			}
			return entity{ID: m["id"].(string), Name: m["name"].(string)}, nil
		},
	)
	repo.newSession = func(ctx context.Context) runner { return r }
	return repo
}

func TestNewNeo4jRepoDefaultIDKey(t *testing.T) {
	r := NewNeo4jRepo[entity, string](nil, "Node", nil, nil)
	if r.idKey != "id" {
		t.Fatalf("expected default idKey=id, got %s", r.idKey)
	}
}

func TestNewNeo4jRepoWithIDKey(t *testing.T) {
	r := NewNeo4jRepo[entity, string](nil, "Node", nil, nil, WithIDKey[entity, string]("uuid"))
	if r.idKey != "uuid" {
		t.Fatalf("expected idKey=uuid, got %s", r.idKey)
	}
}

func TestGetSuccess(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("1", "Alice")}}}
	repo := newTestRepo(r)

	e, err := repo.Get(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "1" || e.Name != "Alice" {
		t.Fatalf("got %+v", e)
	}
}

func TestGetNotFound(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)
	if _, err := repo.Get(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateUsesMergeNotCreate(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("1", "A")}}}
	repo := newTestRepo(r)
	if _, err := repo.Create(context.Background(), entity{ID: "1", Name: "A"}); err != nil {
		t.Fatal(err)
	}
	if len(r.cyphers) != 1 {
		t.Fatalf("expected one cypher statement, got %d", len(r.cyphers))
	}
	if got := r.cyphers[0]; got != "MERGE (n:Entity {id: $id}) SET n += $props RETURN n" {
		t.Fatalf("unexpected cypher: %q", got)
	}
}

func TestListRespectsDefaultLimit(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)
	if _, err := repo.List(context.Background(), ListOpts{}); err != nil {
		t.Fatal(err)
	}
	if len(r.params) != 1 || r.params[0]["limit"] != 100 {
		t.Fatalf("expected limit=100, got %+v", r.params)
	}
}

func TestDeleteSuccess(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	repo := newTestRepo(r)
	if err := repo.Delete(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
}
