// Package labeling casts automatic votes on newly ingested items.
package labeling

import (
	"context"
	"strings"
	"unicode"

	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/vote"
)

// VoteIntent is a single vote a producer wants cast. Quality, when set, is
// recorded as the producer's quality input alongside the label.
type VoteIntent struct {
	Label   string
	Delta   int
	Quality *int
}

// Producer decides how to vote on an item. ok is false when it abstains.
type Producer interface {
	Name() string
	ProduceVote(ctx context.Context, it *item.Item) (intent VoteIntent, ok bool, err error)
}

var (
	defaultPositiveWords = []string{"good", "great", "excellent", "amazing", "wonderful", "love", "best"}
	defaultNegativeWords = []string{"bad", "terrible", "awful", "hate", "worst", "poor", "fail"}
)

// Keywords votes on sentiment word counts and rates quality by length.
type Keywords struct {
	Positive []string
	Negative []string
}

// NewKeywords returns the heuristic with its stock word lists.
func NewKeywords() *Keywords {
	return &Keywords{Positive: defaultPositiveWords, Negative: defaultNegativeWords}
}

func (k *Keywords) Name() string { return "keywords" }

func (k *Keywords) ProduceVote(_ context.Context, it *item.Item) (VoteIntent, bool, error) {
	text := it.Payload
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	pos := countHits(words, k.Positive)
	neg := countHits(words, k.Negative)
	quality := lengthQuality(text)

	switch {
	case pos > neg:
		return VoteIntent{Label: string(vote.LabelPositive), Delta: 1, Quality: &quality}, true, nil
	case neg > pos:
		return VoteIntent{Label: string(vote.LabelNegative), Delta: -1, Quality: &quality}, true, nil
	case quality > 0:
		return VoteIntent{Label: string(vote.LabelQuality), Delta: quality, Quality: &quality}, true, nil
	}
	return VoteIntent{}, false, nil
}

func countHits(words map[string]bool, list []string) int {
	n := 0
	for _, w := range list {
		if words[w] {
			n++
		}
	}
	return n
}

func lengthQuality(text string) int {
	n := len([]rune(text))
	switch {
	case n > 500:
		return 2
	case n > 200:
		return 1
	}
	return 0
}
