package training_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/checkpoint"
	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type harness struct {
	items       *item.Service
	ledger      *vote.Ledger
	approval    *approval.Service
	log         *eventlog.Log
	fanout      *eventlog.Fanout
	checkpoints *checkpoint.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	cps, err := checkpoint.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { cps.Close() })

	policy, err := vote.Policy{VoteThreshold: 3, QualityMin: 1}.Validate()
	require.NoError(t, err)

	fanout := eventlog.NewFanout()
	log := eventlog.NewLog(sqlite.NewStreamRepository(db), fanout, nil)
	itemRepo := sqlite.NewItemRepository(db)
	ledger := vote.NewLedger(sqlite.NewVoteRepository(db), nil)
	return &harness{
		items:       item.NewService(itemRepo, log, 0, nil),
		ledger:      ledger,
		approval:    approval.NewService(itemRepo, ledger, sqlite.NewDecisionRepository(db), log, policy, nil),
		log:         log,
		fanout:      fanout,
		checkpoints: cps,
	}
}

func (h *harness) consumer(t *testing.T, writer training.ArtifactWriter, featurizer training.Featurizer) *training.Consumer {
	t.Helper()
	return training.NewConsumer(h.items, h.log, writer, h.checkpoints, featurizer, nil)
}

func newWriter(t *testing.T) *artifact.Writer {
	t.Helper()
	w, err := artifact.NewWriter(t.TempDir(), nil)
	require.NoError(t, err)
	return w
}

// approve ingests text, casts the given label votes and moderates it to approved.
func (h *harness) approve(t *testing.T, text string, labels ...string) string {
	t.Helper()
	ctx := context.Background()
	res, err := h.items.Ingest(ctx, item.IngestRequest{Text: text, Source: "test"})
	require.NoError(t, err)
	hash := res.Item.Hash
	for i, l := range labels {
		_, err := h.approval.CastVote(ctx, vote.CastRequest{ItemHash: hash, VoterID: fmt.Sprintf("v%d", i), Label: l, Delta: 1})
		require.NoError(t, err)
	}
	_, err = h.approval.Moderate(ctx, approval.ModerateRequest{ItemHash: hash, Action: "approve", Actor: "test"})
	require.NoError(t, err)
	return hash
}

func (h *harness) approveN(t *testing.T, n int, labels ...string) []string {
	t.Helper()
	hashes := make([]string, n)
	for i := range n {
		hashes[i] = h.approve(t, fmt.Sprintf("approved item number %d", i), labels...)
	}
	return hashes
}

func TestConsumer_BatchesAndCheckpoint(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	hashes := h.approveN(t, 5, "quality")
	writer := newWriter(t)
	c := h.consumer(t, writer, nil)

	cfg := training.RunConfig{BatchSize: 2, QualityMin: 1}
	res, err := c.Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 5, res.Processed)
	require.Len(t, res.Batches, 3)
	require.Len(t, res.Artifacts, 3)

	head, err := h.log.Head(ctx, eventlog.StreamApproved)
	require.NoError(t, err)
	require.Equal(t, head, res.Offset)

	cp, err := h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Equal(t, head, cp.Offset)
	require.Equal(t, 3, cp.Batches)
	require.Equal(t, res.Artifacts[2], cp.LastArtifact)

	first, err := writer.Read(res.Artifacts[0])
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, hashes[0], first[0].ItemHash)
	require.Equal(t, hashes[1], first[1].ItemHash)
	require.JSONEq(t, `{"quality":1}`, first[0].Labels)
	require.Equal(t, int64(1), first[0].Quality)

	progress, err := h.log.Read(ctx, eventlog.StreamTrainingProgress, 0, 10)
	require.NoError(t, err)
	require.Len(t, progress, 3)

	again, err := c.Run(ctx, cfg)
	require.NoError(t, err)
	require.Zero(t, again.Processed)
	require.Empty(t, again.Batches)
}

func TestConsumer_MaxRecords(t *testing.T) {
	h := newHarness(t)
	h.approveN(t, 5, "quality")
	c := h.consumer(t, newWriter(t), nil)

	res, err := c.Run(context.Background(), training.RunConfig{BatchSize: 2, MaxRecords: 3, QualityMin: 1})
	require.NoError(t, err)
	require.Equal(t, 3, res.Processed)
	require.Len(t, res.Batches, 2)
	require.Equal(t, 1, res.Batches[1].Processed)
}

func TestConsumer_Filters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tagged := h.approve(t, "tagged and rated", "topic:go", "quality")
	h.approve(t, "rated only", "quality")
	h.approve(t, "tagged without rating", "topic:go")
	writer := newWriter(t)
	c := h.consumer(t, writer, nil)

	res, err := c.Run(ctx, training.RunConfig{LabelFilter: "topic:go", QualityMin: 1, BatchSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 2, res.Filtered)
	require.Len(t, res.Artifacts, 1)

	records, err := writer.Read(res.Artifacts[0])
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, tagged, records[0].ItemHash)
}

func TestConsumer_FeaturizeFailureSkips(t *testing.T) {
	h := newHarness(t)
	hashes := h.approveN(t, 3, "quality")
	bad := hashes[1]

	featurizer := training.FeaturizerFunc(func(ctx context.Context, in training.Input) (artifact.Record, error) {
		if in.Item.Hash == bad {
			return artifact.Record{}, training.ErrFeaturize
		}
		return training.DefaultFeaturizer{}.Featurize(ctx, in)
	})
	writer := newWriter(t)
	c := h.consumer(t, writer, featurizer)

	res, err := c.Run(context.Background(), training.RunConfig{QualityMin: 1, BatchSize: 10})
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)
	require.Equal(t, 1, res.Skipped)

	records, err := writer.Read(res.Artifacts[0])
	require.NoError(t, err)
	require.Equal(t, []string{hashes[0], hashes[2]}, []string{records[0].ItemHash, records[1].ItemHash})
}

func TestConsumer_AllSkippedAdvancesWithoutArtifact(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.approveN(t, 2, "quality")
	featurizer := training.FeaturizerFunc(func(context.Context, training.Input) (artifact.Record, error) {
		return artifact.Record{}, training.ErrFeaturize
	})
	writer := newWriter(t)
	c := h.consumer(t, writer, featurizer)

	cfg := training.RunConfig{QualityMin: 1, BatchSize: 10}
	res, err := c.Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, res.Skipped)
	require.Empty(t, res.Artifacts)
	require.Len(t, res.Batches, 1)

	arts, err := writer.List()
	require.NoError(t, err)
	require.Empty(t, arts)

	head, err := h.log.Head(ctx, eventlog.StreamApproved)
	require.NoError(t, err)
	cp, err := h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Equal(t, head, cp.Offset)
}

func TestConsumer_CancelledRunKeepsCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.approveN(t, 2, "quality")
	c := h.consumer(t, newWriter(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := training.RunConfig{QualityMin: 1}
	_, err := c.Run(ctx, cfg)
	require.ErrorIs(t, err, context.Canceled)

	cp, err := h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Zero(t, cp.Offset)
}

// flakyWriter fails the nth write, standing in for a crash mid-run.
type flakyWriter struct {
	inner  *artifact.Writer
	failAt int
	calls  int
}

func (w *flakyWriter) Write(ctx context.Context, records []artifact.Record) (*artifact.Artifact, error) {
	w.calls++
	if w.calls == w.failAt {
		return nil, fmt.Errorf("%w: disk full", artifact.ErrWriteFailed)
	}
	return w.inner.Write(ctx, records)
}

func TestConsumer_ResumeProducesIdenticalArtifacts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.approveN(t, 5, "quality")
	cfg := training.RunConfig{BatchSize: 2, QualityMin: 1}

	crashed := newWriter(t)
	_, err := h.consumer(t, &flakyWriter{inner: crashed, failAt: 2}, nil).Run(ctx, cfg)
	require.ErrorIs(t, err, artifact.ErrWriteFailed)

	cp, err := h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Equal(t, 1, cp.Batches)

	resumed, err := h.consumer(t, crashed, nil).Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 3, resumed.Processed)
	require.Len(t, resumed.Artifacts, 2)

	require.NoError(t, h.checkpoints.Reset(cfg.Key()))
	clean := newWriter(t)
	full, err := h.consumer(t, clean, nil).Run(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, full.Artifacts, 3)

	resumedArts, err := crashed.List()
	require.NoError(t, err)
	require.Len(t, resumedArts, 3)
	for _, version := range full.Artifacts {
		a, err := os.ReadFile(filepath.Join(crashed.Dir(), version+".parquet"))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(clean.Dir(), version+".parquet"))
		require.NoError(t, err)
		require.True(t, bytes.Equal(a, b), "artifact %s differs", version)
	}
}

func TestConsumer_MaxRecordsHoldsAcrossResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.approveN(t, 6, "quality")
	cfg := training.RunConfig{BatchSize: 2, MaxRecords: 3, QualityMin: 1}

	crashed := newWriter(t)
	_, err := h.consumer(t, &flakyWriter{inner: crashed, failAt: 2}, nil).Run(ctx, cfg)
	require.ErrorIs(t, err, artifact.ErrWriteFailed)

	cp, err := h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Equal(t, 2, cp.Processed)

	resumed, err := h.consumer(t, crashed, nil).Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 1, resumed.Processed)
	require.Len(t, resumed.Artifacts, 1)

	cp, err = h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Equal(t, 3, cp.Processed)

	require.NoError(t, h.checkpoints.Reset(cfg.Key()))
	clean := newWriter(t)
	full, err := h.consumer(t, clean, nil).Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 3, full.Processed)
	require.Len(t, full.Artifacts, 2)

	resumedArts, err := crashed.List()
	require.NoError(t, err)
	require.Len(t, resumedArts, 2)
	for _, version := range full.Artifacts {
		a, err := os.ReadFile(filepath.Join(crashed.Dir(), version+".parquet"))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(clean.Dir(), version+".parquet"))
		require.NoError(t, err)
		require.True(t, bytes.Equal(a, b), "artifact %s differs", version)
	}
}

func TestConsumer_MaxRecordsIsCumulative(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.approveN(t, 3, "quality")
	c := h.consumer(t, newWriter(t), nil)
	cfg := training.RunConfig{BatchSize: 10, MaxRecords: 2, QualityMin: 1}

	first, err := c.Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, first.Processed)

	h.approve(t, "approved after the cap was reached", "quality")
	second, err := c.Run(ctx, cfg)
	require.NoError(t, err)
	require.Zero(t, second.Processed)
	require.Empty(t, second.Artifacts)
	require.Equal(t, first.Offset, second.Offset)

	cp, err := h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Equal(t, 2, cp.Processed)
}

func TestConsumer_LateVotesDoNotChangeSelection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	hashes := h.approveN(t, 3, "quality", "topic:go")
	writer := newWriter(t)
	c := h.consumer(t, writer, nil)
	cfg := training.RunConfig{LabelFilter: "topic:go", QualityMin: 1, BatchSize: 10}

	before, err := c.Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 3, before.Processed)

	// v0 cast the quality vote and v1 the topic vote in approve.
	for _, req := range []vote.CastRequest{
		{ItemHash: hashes[1], VoterID: "v0", Label: "quality", Delta: 0},
		{ItemHash: hashes[1], VoterID: "v1", Label: "topic:go", Delta: 0},
	} {
		res, err := h.approval.CastVote(ctx, req)
		require.NoError(t, err)
		require.True(t, res.Stale)
	}

	require.NoError(t, h.checkpoints.Reset(cfg.Key()))
	after, err := c.Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 3, after.Processed)
	require.Zero(t, after.Filtered)
	require.Equal(t, before.Artifacts, after.Artifacts)
}

type failingItems struct{}

func (failingItems) Get(context.Context, string) (*item.Item, error) {
	return nil, errors.New("store unavailable")
}

func TestConsumer_StoreErrorAborts(t *testing.T) {
	h := newHarness(t)
	h.approveN(t, 1, "quality")
	c := training.NewConsumer(failingItems{}, h.log, newWriter(t), h.checkpoints, nil, nil)

	cfg := training.RunConfig{QualityMin: 1}
	_, err := c.Run(context.Background(), cfg)
	require.Error(t, err)

	cp, err := h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Zero(t, cp.Offset)
}
