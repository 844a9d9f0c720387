package training

import (
	"context"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/checkpoint"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
)

// ItemReader fetches stored items.
type ItemReader interface {
	Get(ctx context.Context, hash string) (*item.Item, error)
}

// StreamLog reads the approved stream and records progress.
type StreamLog interface {
	Read(ctx context.Context, stream eventlog.Stream, after int64, limit int) ([]eventlog.Entry, error)
	Append(ctx context.Context, stream eventlog.Stream, eventType, itemHash string, payload any) (*eventlog.Entry, error)
}

// ArtifactWriter publishes a batch.
type ArtifactWriter interface {
	Write(ctx context.Context, records []artifact.Record) (*artifact.Artifact, error)
}

// CheckpointStore persists run positions.
type CheckpointStore interface {
	Load(runKey string) (checkpoint.Checkpoint, error)
	Save(cp checkpoint.Checkpoint) error
}
