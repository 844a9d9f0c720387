package vote

import (
	"regexp"
	"strings"
)

// Label names what a vote says about an item.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelQuality  Label = "quality"
)

// Kind is the aggregation rule attached to a label.
type Kind int

const (
	// KindTopic labels are counted but do not move the score.
	KindTopic Kind = iota

	// KindScoreUp labels add their delta to the score.
	KindScoreUp

	// KindScoreDown labels subtract the magnitude of their delta from the score.
	KindScoreDown

	// KindQuality labels record the voter's quality input.
	KindQuality
)

func (k Kind) String() string {
	switch k {
	case KindScoreUp:
		return "score_up"
	case KindScoreDown:
		return "score_down"
	case KindQuality:
		return "quality"
	default:
		return "topic"
	}
}

var labelPattern = regexp.MustCompile(`^[a-z0-9_:-]{1,64}$`)

// ParseLabel canonicalizes and validates a label name.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !labelPattern.MatchString(string(l)) {
		return "", ErrInvalidLabel
	}
	return l, nil
}

// Kind returns the aggregation rule for the label.
func (l Label) Kind() Kind {
	switch l {
	case LabelPositive:
		return KindScoreUp
	case LabelNegative:
		return KindScoreDown
	case LabelQuality:
		return KindQuality
	default:
		return KindTopic
	}
}
