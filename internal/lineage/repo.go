// Package lineage implements the optional Reform Lineage Graph: a
// Neo4j-backed side index of which reforms amended which documents, kept
// separate from the system of record in internal/persistence so it can be
// disabled without affecting correctness of the main pipeline.
package lineage

import "context"

// Repository is a generic CRUD interface over a graph-backed entity.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination and filtering for List operations.
type ListOpts struct {
	Offset int
	Limit  int
	Filter map[string]any
}
