package lineage

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/scjn/scjn-pipeline/internal/domain"
)

// DocumentNode is the graph projection of a domain.Document: identity and
// classification only, not full article text — the system of record for
// content stays in internal/persistence.
type DocumentNode struct {
	ID       string
	QParam   string
	Title    string
	Category string
	Scope    string
}

// ReformNode is the graph projection of a domain.Reform.
type ReformNode struct {
	ID              string
	QParam          string
	PublicationDate string
}

// documentToMap/documentFromRecord and reformToMap/reformFromRecord adapt
// between the domain types and the property maps Neo4jRepo persists.

func documentToMap(d DocumentNode) map[string]any {
	return map[string]any{
		"id":       d.ID,
		"q_param":  d.QParam,
		"title":    d.Title,
		"category": d.Category,
		"scope":    d.Scope,
	}
}

func documentFromRecord(rec *neo4j.Record) (DocumentNode, error) {
	node, ok := rec.Values[0].(neo4j.Node)
	if !ok {
		return DocumentNode{}, fmt.Errorf("lineage: unexpected record shape for document node")
	}
	props := node.Props
	return DocumentNode{
		ID:       stringProp(props, "id"),
		QParam:   stringProp(props, "q_param"),
		Title:    stringProp(props, "title"),
		Category: stringProp(props, "category"),
		Scope:    stringProp(props, "scope"),
	}, nil
}

func reformToMap(r ReformNode) map[string]any {
	return map[string]any{
		"id":               r.ID,
		"q_param":          r.QParam,
		"publication_date": r.PublicationDate,
	}
}

func reformFromRecord(rec *neo4j.Record) (ReformNode, error) {
	node, ok := rec.Values[0].(neo4j.Node)
	if !ok {
		return ReformNode{}, fmt.Errorf("lineage: unexpected record shape for reform node")
	}
	props := node.Props
	return ReformNode{
		ID:              stringProp(props, "id"),
		QParam:          stringProp(props, "q_param"),
		PublicationDate: stringProp(props, "publication_date"),
	}, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

// Graph wires the generic Neo4j repositories for Document/Reform nodes
// together with the AMENDED_BY edge, forming the Reform Lineage Graph.
type Graph struct {
	driver  neo4j.DriverWithContext
	docs    *Neo4jRepo[DocumentNode, string]
	reforms *Neo4jRepo[ReformNode, string]
}

// NewGraph builds a Graph over the given driver.
func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{
		driver:  driver,
		docs:    NewNeo4jRepo[DocumentNode, string](driver, "Document", documentToMap, documentFromRecord),
		reforms: NewNeo4jRepo[ReformNode, string](driver, "Reform", reformToMap, reformFromRecord),
	}
}

// UpsertDocument records or refreshes a document's node in the graph.
func (g *Graph) UpsertDocument(ctx context.Context, d *domain.Document) error {
	_, err := g.docs.Create(ctx, DocumentNode{
		ID:       d.ID,
		QParam:   d.QParam,
		Title:    d.Title,
		Category: string(d.Category),
		Scope:    string(d.Scope),
	})
	return err
}

// UpsertReform records or refreshes a reform's node and links it to its
// parent document via an AMENDED_BY edge.
func (g *Graph) UpsertReform(ctx context.Context, documentID string, r *domain.Reform) error {
	pub := ""
	if r.PublicationDate != nil {
		pub = r.PublicationDate.Format("2006-01-02")
	}
	if _, err := g.reforms.Create(ctx, ReformNode{ID: r.ID, QParam: r.QParam, PublicationDate: pub}); err != nil {
		return err
	}
	return g.linkAmendedBy(ctx, documentID, r.ID)
}

// linkAmendedBy creates the (Document)-[:AMENDED_BY]->(Reform) edge,
// idempotently, so reprocessing the same reform never duplicates edges.
func (g *Graph) linkAmendedBy(ctx context.Context, documentID, reformID string) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `
MATCH (d:Document {id: $documentID})
MATCH (r:Reform {id: $reformID})
MERGE (d)-[:AMENDED_BY]->(r)
`
	_, err := sess.Run(ctx, cypher, map[string]any{"documentID": documentID, "reformID": reformID})
	return err
}

// ReformsFor returns every reform node linked to the given document, in
// the order Neo4j yields them; the query applies no ordering.
func (g *Graph) ReformsFor(ctx context.Context, documentID string) ([]ReformNode, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (:Document {id: $documentID})-[:AMENDED_BY]->(r:Reform) RETURN r`
	res, err := sess.Run(ctx, cypher, map[string]any{"documentID": documentID})
	if err != nil {
		return nil, err
	}

	var out []ReformNode
	for res.Next(ctx) {
		node, ok := res.Record().Values[0].(neo4j.Node)
		if !ok {
			continue
		}
		props := node.Props
		out = append(out, ReformNode{
			ID:              stringProp(props, "id"),
			QParam:          stringProp(props, "q_param"),
			PublicationDate: stringProp(props, "publication_date"),
		})
	}
	return out, nil
}
