package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	defaultReadLimit = 100
	maxReadLimit     = 1000
)

// Log appends to and reads from the streams, announcing each append on the
// fan-out after it is durable.
type Log struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewLog creates a new stream log. publisher may be nil.
func NewLog(repo Repository, publisher Publisher, logger *slog.Logger) *Log {
	return &Log{repo: repo, publisher: publisher, logger: logger, now: time.Now}
}

// Append writes an entry to stream with a JSON encoded payload.
func (l *Log) Append(ctx context.Context, stream Stream, eventType, itemHash string, payload any) (*Entry, error) {
	if !stream.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", stream, err)
	}

	entry := &Entry{
		Stream:    stream,
		Type:      eventType,
		ItemHash:  itemHash,
		Payload:   raw,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("appending to %s: %w", stream, err)
	}
	if l.logger != nil {
		l.logger.Debug("stream append", "stream", stream, "type", eventType, "item", itemHash, "offset", entry.Offset)
	}

	l.Announce(*entry)
	return entry, nil
}

// Announce publishes a committed entry to the fan-out.
func (l *Log) Announce(entry Entry) {
	if l.publisher == nil {
		return
	}
	l.publisher.Publish(Notification{
		ID:       uuid.NewString(),
		Stream:   entry.Stream,
		Type:     entry.Type,
		ItemHash: entry.ItemHash,
		Offset:   entry.Offset,
		Payload:  entry.Payload,
	})
}

// Read returns up to limit entries of stream with offsets greater than after.
func (l *Log) Read(ctx context.Context, stream Stream, after int64, limit int) ([]Entry, error) {
	if !stream.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
	if limit <= 0 {
		limit = defaultReadLimit
	}
	if limit > maxReadLimit {
		limit = maxReadLimit
	}
	if after < 0 {
		after = 0
	}
	entries, err := l.repo.Read(ctx, stream, after, limit)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", stream, err)
	}
	return entries, nil
}

// Head returns the latest offset of stream, or zero when it is empty.
func (l *Log) Head(ctx context.Context, stream Stream) (int64, error) {
	if !stream.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
	offset, err := l.repo.Head(ctx, stream)
	if err != nil {
		return 0, fmt.Errorf("reading %s head: %w", stream, err)
	}
	return offset, nil
}
