package vote

import (
	"fmt"
	"strings"
)

// QualityAggregate selects how per-voter quality inputs combine.
type QualityAggregate string

const (
	QualitySum    QualityAggregate = "sum"
	QualityMax    QualityAggregate = "max"
	QualityMin    QualityAggregate = "min"
	QualityLatest QualityAggregate = "latest"
)

// RejectRule selects when a tally rejects an item.
type RejectRule string

const (
	// RejectSymmetric rejects once the score falls to -RejectThreshold.
	RejectSymmetric RejectRule = "symmetric"

	// RejectExplicit never rejects from votes; only moderation rejects.
	RejectExplicit RejectRule = "explicit"
)

const (
	DefaultVoteThreshold = 3
	DefaultQualityMin    = 1
)

// Policy is the immutable threshold configuration used by Evaluate.
type Policy struct {
	VoteThreshold   int              `yaml:"vote_threshold" json:"vote_threshold"`
	QualityMin      int              `yaml:"quality_min" json:"quality_min"`
	Quality         QualityAggregate `yaml:"quality_policy" json:"quality_policy"`
	Reject          RejectRule       `yaml:"reject_rule" json:"reject_rule"`
	RejectThreshold int              `yaml:"reject_threshold" json:"reject_threshold"`
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		VoteThreshold:   DefaultVoteThreshold,
		QualityMin:      DefaultQualityMin,
		Quality:         QualitySum,
		Reject:          RejectSymmetric,
		RejectThreshold: DefaultVoteThreshold,
	}
}

// Validate checks the policy and fills the reject threshold when unset.
func (p Policy) Validate() (Policy, error) {
	if p.VoteThreshold <= 0 {
		return p, fmt.Errorf("%w: vote threshold must be positive", ErrInvalidPolicy)
	}
	p.Quality = QualityAggregate(strings.ToLower(string(p.Quality)))
	switch p.Quality {
	case "":
		p.Quality = QualitySum
	case QualitySum, QualityMax, QualityMin, QualityLatest:
	default:
		return p, fmt.Errorf("%w: unknown quality policy %q", ErrInvalidPolicy, p.Quality)
	}
	p.Reject = RejectRule(strings.ToLower(string(p.Reject)))
	switch p.Reject {
	case "":
		p.Reject = RejectSymmetric
	case RejectSymmetric, RejectExplicit:
	default:
		return p, fmt.Errorf("%w: unknown reject rule %q", ErrInvalidPolicy, p.Reject)
	}
	if p.RejectThreshold <= 0 {
		p.RejectThreshold = p.VoteThreshold
	}
	return p, nil
}
