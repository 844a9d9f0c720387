package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/semantix/internal/config"
	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/sqlite"
)

func TestParseFlags(t *testing.T) {
	defaults := config.Default().Training

	opts, err := parseFlags([]string{"-label", "Topic:Go", "-batch-size", "10", "-reset"}, defaults, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "Topic:Go", opts.runCfg.LabelFilter)
	require.Equal(t, 10, opts.runCfg.BatchSize)
	require.True(t, opts.reset)

	_, err = parseFlags([]string{"-max-records", "-1"}, defaults, io.Discard)
	require.ErrorIs(t, err, training.ErrInvalidConfig)

	_, err = parseFlags([]string{"-bogus"}, defaults, io.Discard)
	require.Error(t, err)
}

func TestRun_WritesArtifactsAndResumes(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DB.Path = filepath.Join(dir, "semantix.db")
	cfg.Training.ArtifactsDir = filepath.Join(dir, "artifacts")
	cfg.Training.CheckpointPath = filepath.Join(dir, "state", "checkpoints.db")

	seed(t, cfg.DB.Path, "first approved text", "second approved text")

	opts := options{runCfg: training.RunConfig{BatchSize: 1}}
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, opts, &out, nil))

	var first training.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &first))
	require.Equal(t, 2, first.Processed)
	require.Len(t, first.Batches, 2)
	require.Len(t, first.Artifacts, 2)

	out.Reset()
	require.NoError(t, run(context.Background(), cfg, opts, &out, nil))
	var second training.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &second))
	require.Zero(t, second.Processed)
	require.Equal(t, first.Offset, second.Offset)

	out.Reset()
	require.NoError(t, run(context.Background(), cfg, options{list: true}, &out, nil))
	require.Contains(t, out.String(), first.RunKey)
}

func seed(t *testing.T, path string, texts ...string) {
	t.Helper()
	db, err := sqlite.New(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())

	log := eventlog.NewLog(sqlite.NewStreamRepository(db), nil, nil)
	itemRepo := sqlite.NewItemRepository(db)
	items := item.NewService(itemRepo, log, 0, nil)
	ledger := vote.NewLedger(sqlite.NewVoteRepository(db), nil)
	svc := approval.NewService(itemRepo, ledger, sqlite.NewDecisionRepository(db), log, vote.DefaultPolicy(), nil)

	ctx := context.Background()
	for _, text := range texts {
		res, err := items.Ingest(ctx, item.IngestRequest{Text: text})
		require.NoError(t, err)
		_, err = svc.Moderate(ctx, approval.ModerateRequest{ItemHash: res.Item.Hash, Action: "approve", Actor: "seed"})
		require.NoError(t, err)
	}
}
