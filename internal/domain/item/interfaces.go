package item

import "context"

// Repository provides persistence for items.
type Repository interface {
	// Put stores the item and its ingest stream entry unless the hash is
	// already known.
	Put(ctx context.Context, it *Item) (PutResult, error)
	Get(ctx context.Context, hash string) (*Item, error)
	List(ctx context.Context, opts ListOptions) ([]Ref, error)
	Counts(ctx context.Context) (StatusCounts, error)
}

// ListOptions provides filtering options for listing items.
type ListOptions struct {
	Status Status
	Limit  int
	Offset int
}
