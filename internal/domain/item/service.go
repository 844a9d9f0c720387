package item

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/repository"
)

// DefaultMaxPayloadBytes bounds the size of an ingested payload.
const DefaultMaxPayloadBytes = 1_000_000

// Service handles ingestion and lookup of items.
type Service struct {
	repo            Repository
	log             *eventlog.Log
	logger          *slog.Logger
	maxPayloadBytes int
	now             func() time.Time
}

// NewService creates a new item service. log may be nil, in which case
// ingest notifications are not published.
func NewService(repo Repository, log *eventlog.Log, maxPayloadBytes int, logger *slog.Logger) *Service {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Service{
		repo:            repo,
		log:             log,
		logger:          logger,
		maxPayloadBytes: maxPayloadBytes,
		now:             time.Now,
	}
}

// IngestRequest defines ingestion inputs.
type IngestRequest struct {
	Text    string
	Source  string
	Mime    string
	RawPath string
}

// IngestResult reports the stored item and whether this call created it.
type IngestResult struct {
	Item    *Item `json:"item"`
	Created bool  `json:"created"`
}

// PutResult is returned by Repository.Put.
type PutResult struct {
	Created bool
	// Entry is the ingest stream entry written with a newly created item.
	Entry *eventlog.Entry
}

// Ingest normalizes and stores a payload. Ingesting a payload whose hash is
// already known returns the existing item untouched.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if len(req.Text) > s.maxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	mime := strings.TrimSpace(req.Mime)
	if mime == "" {
		mime = "text/plain"
	}

	payload := Normalize(req.Text)
	if mime == "text/html" {
		payload = ExtractPlainText(req.Text)
	}
	if payload == "" {
		return nil, ErrInvalidInput
	}

	it := &Item{
		Hash:       ContentHash(payload),
		Payload:    payload,
		Source:     strings.TrimSpace(req.Source),
		Mime:       mime,
		Bytes:      int64(len(req.Text)),
		RawPath:    req.RawPath,
		Status:     StatusVoting,
		IngestedAt: s.now().UTC(),
	}
	return s.Put(ctx, it)
}

// Put stores an already normalized item. A known hash is a no-op.
func (s *Service) Put(ctx context.Context, it *Item) (*IngestResult, error) {
	if it == nil || strings.TrimSpace(it.Hash) == "" || it.Payload == "" {
		return nil, ErrInvalidInput
	}
	if it.Status == "" {
		it.Status = StatusVoting
	}
	if it.IngestedAt.IsZero() {
		it.IngestedAt = s.now().UTC()
	}

	res, err := s.repo.Put(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("storing item: %w", err)
	}
	if !res.Created {
		existing, err := s.Get(ctx, it.Hash)
		if err != nil {
			return nil, err
		}
		if s.logger != nil {
			s.logger.Debug("duplicate ingest", "item", it.Hash)
		}
		return &IngestResult{Item: existing, Created: false}, nil
	}

	if s.logger != nil {
		s.logger.Info("item ingested", "item", it.Hash, "source", it.Source, "bytes", it.Bytes)
	}
	if s.log != nil && res.Entry != nil {
		s.log.Announce(*res.Entry)
	}
	return &IngestResult{Item: it, Created: true}, nil
}

// Get fetches an item by hash.
func (s *Service) Get(ctx context.Context, hash string) (*Item, error) {
	it, err := s.repo.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return it, nil
}

// List returns item refs, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Ref, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, ErrInvalidInput
	}
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.repo.List(ctx, opts)
}

// Counts returns per-status totals.
func (s *Service) Counts(ctx context.Context) (StatusCounts, error) {
	return s.repo.Counts(ctx)
}
