package vote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MaxDelta bounds the magnitude of a single contribution.
const MaxDelta = 100

// Ledger records votes, one counted contribution per voter and label.
type Ledger struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a new vote ledger.
func NewLedger(repo Repository, logger *slog.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger, now: time.Now}
}

// CastRequest defines vote inputs.
type CastRequest struct {
	ItemHash string
	VoterID  string
	Label    string
	Delta    int
	Quality  *int
}

// Validate canonicalizes the request into a Vote.
func (r CastRequest) Validate() (*Vote, error) {
	hash := strings.TrimSpace(r.ItemHash)
	voter := strings.TrimSpace(r.VoterID)
	if hash == "" || voter == "" || len(voter) > 128 {
		return nil, ErrInvalidInput
	}
	label, err := ParseLabel(r.Label)
	if err != nil {
		return nil, err
	}
	if r.Delta > MaxDelta || r.Delta < -MaxDelta {
		return nil, fmt.Errorf("%w: delta out of range", ErrInvalidInput)
	}
	quality := r.Quality
	if label.Kind() == KindQuality && quality == nil {
		q := r.Delta
		quality = &q
	}
	if quality != nil && (*quality < -MaxDelta || *quality > MaxDelta) {
		return nil, fmt.Errorf("%w: quality out of range", ErrInvalidInput)
	}
	return &Vote{
		ItemHash: hash,
		VoterID:  voter,
		Label:    label,
		Delta:    r.Delta,
		Quality:  quality,
	}, nil
}

// Cast records a vote and returns the updated tally.
func (l *Ledger) Cast(ctx context.Context, req CastRequest) (Tally, error) {
	v, err := req.Validate()
	if err != nil {
		return Tally{}, err
	}
	return l.Record(ctx, v)
}

// Record stores an already validated vote.
func (l *Ledger) Record(ctx context.Context, v *Vote) (Tally, error) {
	if v.CastAt.IsZero() {
		v.CastAt = l.now().UTC()
	}
	tally, err := l.repo.Upsert(ctx, v)
	if err != nil {
		return Tally{}, fmt.Errorf("recording vote: %w", err)
	}
	if l.logger != nil {
		l.logger.Debug("vote recorded", "item", v.ItemHash, "voter", v.VoterID, "label", v.Label, "delta", v.Delta)
	}
	return tally, nil
}

// Tally returns the current tally for an item.
func (l *Ledger) Tally(ctx context.Context, itemHash string) (Tally, error) {
	t, err := l.repo.Tally(ctx, itemHash)
	if err != nil {
		return Tally{}, fmt.Errorf("reading tally: %w", err)
	}
	return t, nil
}

// Contributions returns every stored (voter, label) slot for an item.
func (l *Ledger) Contributions(ctx context.Context, itemHash string) ([]Contribution, error) {
	out, err := l.repo.List(ctx, itemHash)
	if err != nil {
		return nil, fmt.Errorf("listing votes: %w", err)
	}
	return out, nil
}
