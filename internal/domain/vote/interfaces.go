package vote

import "context"

// Repository provides persistence for the vote ledger.
type Repository interface {
	// Upsert overwrites the voter's slot for the vote's label and returns
	// the item's tally read in the same transaction.
	Upsert(ctx context.Context, v *Vote) (Tally, error)
	Tally(ctx context.Context, itemHash string) (Tally, error)
	List(ctx context.Context, itemHash string) ([]Contribution, error)
}
