package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
)

// Consumer turns the approved stream into artifacts, one batch at a time.
// Only one consumer may run a given config at once.
type Consumer struct {
	items       ItemReader
	log         StreamLog
	writer      ArtifactWriter
	checkpoints CheckpointStore
	featurizer  Featurizer
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	active map[string]bool
}

// NewConsumer wires a consumer. A nil featurizer uses DefaultFeaturizer.
func NewConsumer(items ItemReader, log StreamLog, writer ArtifactWriter, checkpoints CheckpointStore, featurizer Featurizer, logger *slog.Logger) *Consumer {
	if featurizer == nil {
		featurizer = DefaultFeaturizer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		items:       items,
		log:         log,
		writer:      writer,
		checkpoints: checkpoints,
		featurizer:  featurizer,
		logger:      logger,
		now:         time.Now,
		active:      map[string]bool{},
	}
}

// BatchResult summarizes one committed batch.
type BatchResult struct {
	Batch     int    `json:"batch"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Filtered  int    `json:"filtered"`
	Offset    int64  `json:"offset"`
	Artifact  string `json:"artifact,omitempty"`
}

// RunResult summarizes a run.
type RunResult struct {
	RunKey     string        `json:"run_key"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Filtered   int           `json:"filtered"`
	Offset     int64         `json:"offset"`
	Batches    []BatchResult `json:"batches"`
	Artifacts  []string      `json:"artifacts"`
	ElapsedMS  int64         `json:"elapsed_ms"`
	StartAfter int64         `json:"start_after"`
}

const maxPageSize = 500

type batch struct {
	records  []artifact.Record
	skipped  int
	filtered int
	last     int64
	consumed int
	drained  bool
}

// Run consumes approved entries after the run's checkpoint until the stream
// is drained or MaxRecords records were produced. The checkpoint moves only
// after a batch's artifact is committed. A cancelled context stops the run
// between batches.
func (c *Consumer) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	key := cfg.Key()
	if !c.acquire(key) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, key)
	}
	defer c.release(key)

	cp, err := c.checkpoints.Load(key)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", key, err)
	}

	start := c.now()
	res := &RunResult{RunKey: key, Offset: cp.Offset, StartAfter: cp.Offset, Batches: []BatchResult{}, Artifacts: []string{}}
	c.logger.Info("training run started", "run", key, "after", cp.Offset, "batch_size", cfg.BatchSize)

	for {
		if err := ctx.Err(); err != nil {
			res.ElapsedMS = c.now().Sub(start).Milliseconds()
			return res, err
		}
		limit := cfg.BatchSize
		if cfg.MaxRecords > 0 {
			remaining := cfg.MaxRecords - cp.Processed
			if remaining <= 0 {
				break
			}
			limit = min(limit, remaining)
		}

		b, err := c.collect(ctx, cfg, cp.Offset, limit)
		if err != nil {
			res.ElapsedMS = c.now().Sub(start).Milliseconds()
			return res, err
		}
		if b.consumed == 0 {
			break
		}

		var version string
		if len(b.records) > 0 {
			art, err := c.writer.Write(ctx, b.records)
			if err != nil {
				res.ElapsedMS = c.now().Sub(start).Milliseconds()
				return res, fmt.Errorf("writing batch after offset %d: %w", cp.Offset, err)
			}
			version = art.Version
		}

		cp.Offset = b.last
		cp.Batches++
		cp.Processed += len(b.records)
		cp.Skipped += b.skipped
		if version != "" {
			cp.LastArtifact = version
		}
		cp.UpdatedAt = c.now().UTC()
		if err := c.checkpoints.Save(cp); err != nil {
			res.ElapsedMS = c.now().Sub(start).Milliseconds()
			return res, fmt.Errorf("saving checkpoint %s: %w", key, err)
		}

		br := BatchResult{
			Batch:     cp.Batches,
			Processed: len(b.records),
			Skipped:   b.skipped,
			Filtered:  b.filtered,
			Offset:    b.last,
			Artifact:  version,
		}
		res.Batches = append(res.Batches, br)
		res.Processed += br.Processed
		res.Skipped += br.Skipped
		res.Filtered += br.Filtered
		res.Offset = b.last
		if version != "" {
			res.Artifacts = append(res.Artifacts, version)
		}

		if _, err := c.log.Append(ctx, eventlog.StreamTrainingProgress, eventlog.TypeProgress, "", eventlog.ProgressPayload{
			RunKey:    key,
			Batch:     br.Batch,
			Processed: br.Processed,
			Skipped:   br.Skipped,
			Filtered:  br.Filtered,
			ElapsedMS: c.now().Sub(start).Milliseconds(),
			Offset:    br.Offset,
			Artifact:  version,
		}); err != nil {
			res.ElapsedMS = c.now().Sub(start).Milliseconds()
			return res, fmt.Errorf("recording progress: %w", err)
		}
		c.logger.Info("training batch committed", "run", key, "batch", br.Batch, "records", br.Processed, "skipped", br.Skipped, "filtered", br.Filtered, "offset", br.Offset, "artifact", version)

		if b.drained {
			break
		}
	}

	res.ElapsedMS = c.now().Sub(start).Milliseconds()
	c.logger.Info("training run finished", "run", key, "processed", res.Processed, "skipped", res.Skipped, "offset", res.Offset, "elapsed_ms", res.ElapsedMS)
	return res, nil
}

func (c *Consumer) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[key] {
		return false
	}
	c.active[key] = true
	return true
}

func (c *Consumer) release(key string) {
	c.mu.Lock()
	delete(c.active, key)
	c.mu.Unlock()
}

// collect reads approved entries after offset until limit records are
// accumulated or the stream ends.
func (c *Consumer) collect(ctx context.Context, cfg RunConfig, after int64, limit int) (*batch, error) {
	b := &batch{last: after}
	pageSize := min(cfg.BatchSize, maxPageSize)
	for {
		entries, err := c.log.Read(ctx, eventlog.StreamApproved, b.last, pageSize)
		if err != nil {
			return nil, fmt.Errorf("reading approved stream: %w", err)
		}
		if len(entries) == 0 {
			b.drained = true
			return b, nil
		}
		for _, e := range entries {
			rec, outcome, err := c.process(ctx, cfg, e)
			if err != nil {
				return nil, err
			}
			switch outcome {
			case outcomeRecord:
				b.records = append(b.records, rec)
			case outcomeSkipped:
				b.skipped++
			case outcomeFiltered:
				b.filtered++
			}
			b.last = e.Offset
			b.consumed++
			if len(b.records) >= limit {
				return b, nil
			}
		}
		if len(entries) < pageSize {
			b.drained = true
			return b, nil
		}
	}
}

type entryOutcome int

const (
	outcomeRecord entryOutcome = iota
	outcomeSkipped
	outcomeFiltered
)

func (c *Consumer) process(ctx context.Context, cfg RunConfig, e eventlog.Entry) (artifact.Record, entryOutcome, error) {
	it, err := c.items.Get(ctx, e.ItemHash)
	if errors.Is(err, item.ErrItemNotFound) {
		c.logger.Warn("approved item missing", "item", e.ItemHash, "offset", e.Offset)
		return artifact.Record{}, outcomeSkipped, nil
	}
	if err != nil {
		return artifact.Record{}, 0, fmt.Errorf("fetching item %s: %w", e.ItemHash, err)
	}

	// Filters read the decision snapshot; votes cast after approval are audit only.
	in := Input{Item: it}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &in.Decision); err != nil {
			c.logger.Warn("featurize skipped", "item", e.ItemHash, "offset", e.Offset, "error", err)
			return artifact.Record{}, outcomeSkipped, nil
		}
	}
	if cfg.LabelFilter != "" && in.Decision.Counts[cfg.LabelFilter] <= 0 {
		return artifact.Record{}, outcomeFiltered, nil
	}
	if in.Decision.Quality < cfg.QualityMin {
		return artifact.Record{}, outcomeFiltered, nil
	}
	rec, err := c.featurizer.Featurize(ctx, in)
	if err != nil {
		c.logger.Warn("featurize skipped", "item", e.ItemHash, "offset", e.Offset, "error", err)
		return artifact.Record{}, outcomeSkipped, nil
	}
	return rec, outcomeRecord, nil
}
