package training

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
)

// Input is everything known about an approved item at featurization time.
// Decision is the snapshot recorded when the item was approved.
type Input struct {
	Item     *item.Item
	Decision eventlog.DecisionPayload
}

// Featurizer turns an approved item into a training record. Output must
// depend only on the input for artifacts to be reproducible.
type Featurizer interface {
	Featurize(ctx context.Context, in Input) (artifact.Record, error)
}

// FeaturizerFunc adapts a function to Featurizer.
type FeaturizerFunc func(ctx context.Context, in Input) (artifact.Record, error)

func (f FeaturizerFunc) Featurize(ctx context.Context, in Input) (artifact.Record, error) {
	return f(ctx, in)
}

// DefaultFeaturizer emits the item text with its decision snapshot and a
// few surface statistics.
type DefaultFeaturizer struct{}

type textFeatures struct {
	Chars int `json:"chars"`
	Words int `json:"words"`
	Lines int `json:"lines"`
}

func (DefaultFeaturizer) Featurize(_ context.Context, in Input) (artifact.Record, error) {
	if in.Item == nil {
		return artifact.Record{}, fmt.Errorf("%w: missing item", ErrFeaturize)
	}
	text := in.Item.Payload
	if strings.TrimSpace(text) == "" {
		return artifact.Record{}, fmt.Errorf("%w: empty payload for %s", ErrFeaturize, in.Item.Hash)
	}

	counts := in.Decision.Counts
	if counts == nil {
		counts = map[string]int{}
	}
	// encoding/json sorts map keys, which keeps the bytes canonical.
	labels, err := json.Marshal(counts)
	if err != nil {
		return artifact.Record{}, fmt.Errorf("%w: labels: %w", ErrFeaturize, err)
	}
	features, err := json.Marshal(textFeatures{
		Chars: len([]rune(text)),
		Words: len(strings.Fields(text)),
		Lines: strings.Count(text, "\n") + 1,
	})
	if err != nil {
		return artifact.Record{}, fmt.Errorf("%w: features: %w", ErrFeaturize, err)
	}

	return artifact.Record{
		ItemHash:   in.Item.Hash,
		Text:       text,
		Source:     in.Item.Source,
		Mime:       in.Item.Mime,
		Bytes:      in.Item.Bytes,
		IngestedAt: in.Item.IngestedAt.UnixMilli(),
		Score:      int64(in.Decision.Score),
		Quality:    int64(in.Decision.Quality),
		Voters:     int64(in.Decision.Voters),
		Labels:     string(labels),
		Features:   string(features),
	}, nil
}
