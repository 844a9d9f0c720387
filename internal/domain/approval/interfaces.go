package approval

import (
	"context"

	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/vote"
)

// ItemRepository provides item lookups.
type ItemRepository interface {
	Get(ctx context.Context, hash string) (*item.Item, error)
}

// VoteLedger records votes and reads tallies.
type VoteLedger interface {
	Record(ctx context.Context, v *vote.Vote) (vote.Tally, error)
	Tally(ctx context.Context, itemHash string) (vote.Tally, error)
	Contributions(ctx context.Context, itemHash string) ([]vote.Contribution, error)
}

// DecisionRepository performs the status compare-and-swap.
type DecisionRepository interface {
	// Decide moves the item from voting to status and appends entry in the
	// same transaction. It reports false, with no write, when the item has
	// already left voting.
	Decide(ctx context.Context, hash string, status item.Status, entry *eventlog.Entry) (bool, error)
}

// Announcer publishes committed entries to live observers.
type Announcer interface {
	Announce(entry eventlog.Entry)
}
