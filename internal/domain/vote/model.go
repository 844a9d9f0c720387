package vote

import (
	"sort"
	"time"
)

// Vote is one voter's contribution for one label of an item. A later vote
// by the same voter for the same label replaces the earlier one.
type Vote struct {
	ItemHash string    `json:"item_hash"`
	VoterID  string    `json:"voter_id"`
	Label    Label     `json:"label"`
	Delta    int       `json:"delta"`
	Quality  *int      `json:"quality,omitempty"`
	CastAt   time.Time `json:"cast_at"`
}

// Contribution is the stored state of one (voter, label) slot.
type Contribution struct {
	VoterID string    `json:"voter_id"`
	Label   Label     `json:"label"`
	Delta   int       `json:"delta"`
	CastAt  time.Time `json:"cast_at"`
}

// QualityInput is a voter's latest quality judgement.
type QualityInput struct {
	VoterID string    `json:"voter_id"`
	Quality int       `json:"quality"`
	CastAt  time.Time `json:"cast_at"`
}

// Tally is the aggregate of every voter's latest contributions for an item.
type Tally struct {
	ItemHash  string         `json:"item_hash"`
	Counts    map[Label]int  `json:"counts"`
	Qualities []QualityInput `json:"qualities,omitempty"`
	Voters    int            `json:"voters"`

	// NegativeWeight is the sum of magnitudes of negative contributions.
	NegativeWeight int `json:"negative_weight"`
}

// NewTally aggregates stored contributions and quality inputs. The result
// does not depend on the order of its inputs.
func NewTally(itemHash string, contributions []Contribution, qualities []QualityInput) Tally {
	t := Tally{
		ItemHash: itemHash,
		Counts:   map[Label]int{},
	}
	voters := map[string]struct{}{}
	for _, c := range contributions {
		t.Counts[c.Label] += c.Delta
		if c.Label.Kind() == KindScoreDown {
			t.NegativeWeight += abs(c.Delta)
		}
		voters[c.VoterID] = struct{}{}
	}
	for _, q := range qualities {
		voters[q.VoterID] = struct{}{}
	}
	t.Voters = len(voters)

	t.Qualities = append([]QualityInput(nil), qualities...)
	sort.Slice(t.Qualities, func(i, j int) bool {
		a, b := t.Qualities[i], t.Qualities[j]
		if !a.CastAt.Equal(b.CastAt) {
			return a.CastAt.Before(b.CastAt)
		}
		return a.VoterID < b.VoterID
	})
	return t
}

// Score is the positive total minus the magnitude of negative contributions.
func (t Tally) Score() int {
	return t.Counts[LabelPositive] - t.NegativeWeight
}

// CountsByName returns the counts keyed by plain strings.
func (t Tally) CountsByName() map[string]int {
	out := make(map[string]int, len(t.Counts))
	for l, n := range t.Counts {
		out[string(l)] = n
	}
	return out
}

// Has reports whether label has a non-zero count.
func (t Tally) Has(label Label) bool {
	return t.Counts[label] != 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
