package approval_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type harness struct {
	items    *item.Service
	approval *approval.Service
	log      *eventlog.Log
	fanout   *eventlog.Fanout
}

func newHarness(t *testing.T, policy vote.Policy) *harness {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	fanout := eventlog.NewFanout()
	log := eventlog.NewLog(sqlite.NewStreamRepository(db), fanout, nil)
	itemRepo := sqlite.NewItemRepository(db)
	return &harness{
		items:    item.NewService(itemRepo, log, 0, nil),
		approval: approval.NewService(itemRepo, vote.NewLedger(sqlite.NewVoteRepository(db), nil), sqlite.NewDecisionRepository(db), log, policy, nil),
		log:      log,
		fanout:   fanout,
	}
}

func (h *harness) ingest(t *testing.T, text string) string {
	t.Helper()
	res, err := h.items.Ingest(context.Background(), item.IngestRequest{Text: text, Source: "test"})
	require.NoError(t, err)
	return res.Item.Hash
}

func (h *harness) cast(t *testing.T, hash, voter, label string, delta int) *approval.CastResult {
	t.Helper()
	res, err := h.approval.CastVote(context.Background(), vote.CastRequest{ItemHash: hash, VoterID: voter, Label: label, Delta: delta})
	require.NoError(t, err)
	return res
}

func TestPipeline_ThresholdScenario(t *testing.T) {
	h := newHarness(t, testPolicy(t))

	approved := h.ingest(t, "first item")
	h.cast(t, approved, "a", "positive", 2)
	h.cast(t, approved, "b", "positive", 2)
	h.cast(t, approved, "c", "negative", -1)
	res := h.cast(t, approved, "d", "quality", 1)
	require.Equal(t, 3, res.Evaluation.Score)
	require.True(t, res.Decided)
	require.Equal(t, item.StatusApproved, res.Status)

	held := h.ingest(t, "second item")
	h.cast(t, held, "a", "positive", 2)
	h.cast(t, held, "q", "quality", 0)
	res = h.cast(t, held, "b", "positive", 1)
	require.Equal(t, 3, res.Evaluation.Score)
	require.Equal(t, 0, res.Evaluation.Quality)
	require.Equal(t, vote.OutcomePending, res.Evaluation.Outcome)
	require.Equal(t, item.StatusVoting, res.Status)
}

func TestPipeline_ConcurrentCrossingSingleEvent(t *testing.T) {
	policy := testPolicy(t)
	policy.QualityMin = 0
	h := newHarness(t, policy)
	hash := h.ingest(t, "hotly contested")
	sub := h.fanout.Subscribe(eventlog.StreamApproved)
	defer sub.Close()

	const voters = 20
	var wg sync.WaitGroup
	results := make(chan *approval.CastResult, voters)
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.approval.CastVote(context.Background(), vote.CastRequest{
				ItemHash: hash,
				VoterID:  fmt.Sprintf("voter-%d", i),
				Label:    "positive",
				Delta:    1,
			})
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	decided := 0
	for res := range results {
		if res.Decided {
			decided++
		}
	}
	require.Equal(t, 1, decided)

	entries, err := h.log.Read(context.Background(), eventlog.StreamApproved, 0, 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, hash, entries[0].ItemHash)

	select {
	case n := <-sub.Events:
		require.Equal(t, hash, n.ItemHash)
		require.Equal(t, entries[0].Offset, n.Offset)
	default:
		t.Fatal("expected an approval notification")
	}

	state, err := h.approval.GetState(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, voters, state.Tally.Counts[vote.LabelPositive])
	require.Len(t, state.Contributions, voters)
}

func TestPipeline_ReingestKeepsVotesAndStatus(t *testing.T) {
	h := newHarness(t, testPolicy(t))
	hash := h.ingest(t, "repeat me")
	h.cast(t, hash, "a", "positive", 2)

	res, err := h.items.Ingest(context.Background(), item.IngestRequest{Text: "  repeat   me "})
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, hash, res.Item.Hash)

	state, err := h.approval.GetState(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, 2, state.Tally.Score())
	require.Equal(t, item.StatusVoting, state.Item.Status)

	entries, err := h.log.Read(context.Background(), eventlog.StreamIngest, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPipeline_StaleVoteKeptForAudit(t *testing.T) {
	policy := testPolicy(t)
	policy.QualityMin = 0
	h := newHarness(t, policy)
	hash := h.ingest(t, "quick decision")
	res := h.cast(t, hash, "a", "positive", 3)
	require.True(t, res.Decided)

	res = h.cast(t, hash, "b", "negative", -10)
	require.True(t, res.Stale)
	require.Equal(t, item.StatusApproved, res.Status)

	rejected, err := h.log.Read(context.Background(), eventlog.StreamRejected, 0, 10)
	require.NoError(t, err)
	require.Empty(t, rejected)

	state, err := h.approval.GetState(context.Background(), hash)
	require.NoError(t, err)
	require.Len(t, state.Contributions, 2)
}
