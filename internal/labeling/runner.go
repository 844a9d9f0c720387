package labeling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/vote"
)

// DefaultConcurrency bounds in-flight labeling calls.
const DefaultConcurrency = 4

// VoterPrefix marks votes cast by producers.
const VoterPrefix = "auto:"

// ItemReader fetches stored items.
type ItemReader interface {
	Get(ctx context.Context, hash string) (*item.Item, error)
}

// VoteCaster casts votes through the approval path.
type VoteCaster interface {
	CastVote(ctx context.Context, req vote.CastRequest) (*approval.CastResult, error)
}

// Subscriber provides best-effort stream notifications.
type Subscriber interface {
	Subscribe(streams ...eventlog.Stream) eventlog.Subscription
}

// Runner feeds ingest notifications to producers.
type Runner struct {
	items       ItemReader
	caster      VoteCaster
	subscriber  Subscriber
	producers   []Producer
	concurrency int
	logger      *slog.Logger
	dropped     atomic.Int64
}

// NewRunner creates a runner for producers.
func NewRunner(items ItemReader, caster VoteCaster, subscriber Subscriber, concurrency int, logger *slog.Logger, producers ...Producer) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		items:       items,
		caster:      caster,
		subscriber:  subscriber,
		producers:   producers,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run labels every announced ingest until ctx is done, then waits for
// in-flight work. A notification that arrives while all producer slots are
// busy is dropped and counted. Dropped items are not revisited.
func (r *Runner) Run(ctx context.Context) error {
	sub := r.subscriber.Subscribe(eventlog.StreamIngest)
	defer sub.Close()

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.Events:
			if !ok {
				return nil
			}
			hash := n.ItemHash
			started := g.TryGo(func() error {
				if _, err := r.Label(ctx, hash); err != nil && !errors.Is(err, context.Canceled) {
					r.logger.Warn("auto-label failed", "item", hash, "error", err)
				}
				return nil
			})
			if !started {
				r.dropped.Add(1)
				r.logger.Warn("auto-label dropped, producers busy", "item", hash, "concurrency", r.concurrency)
			}
		}
	}
}

// Dropped returns how many ingest notifications were not labeled because
// every producer slot was busy.
func (r *Runner) Dropped() int64 {
	return r.dropped.Load()
}

// Label runs every producer against one item and returns the votes cast.
// Items no longer in voting are left alone.
func (r *Runner) Label(ctx context.Context, hash string) ([]*approval.CastResult, error) {
	it, err := r.items.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if it.Status != item.StatusVoting {
		return nil, nil
	}

	var results []*approval.CastResult
	for _, p := range r.producers {
		intent, ok, err := p.ProduceVote(ctx, it)
		if err != nil {
			return results, fmt.Errorf("producer %s: %w", p.Name(), err)
		}
		if !ok {
			continue
		}
		res, err := r.caster.CastVote(ctx, vote.CastRequest{
			ItemHash: hash,
			VoterID:  VoterPrefix + p.Name(),
			Label:    intent.Label,
			Delta:    intent.Delta,
			Quality:  intent.Quality,
		})
		if err != nil {
			return results, fmt.Errorf("producer %s: %w", p.Name(), err)
		}
		r.logger.Debug("auto vote cast", "item", hash, "voter", VoterPrefix+p.Name(), "label", intent.Label, "delta", intent.Delta)
		results = append(results, res)
	}
	return results, nil
}
