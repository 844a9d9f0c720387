package vote

// Outcome is the result of evaluating a tally.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Evaluation carries the outcome with the numbers that produced it.
type Evaluation struct {
	Outcome Outcome `json:"outcome"`
	Score   int     `json:"score"`
	Quality int     `json:"quality"`
	Reason  string  `json:"reason"`
}

// Evaluate applies the policy to a tally. It reads nothing but its
// arguments.
func Evaluate(t Tally, p Policy) Evaluation {
	score := t.Score()
	quality := AggregateQuality(t.Qualities, p.Quality)
	ev := Evaluation{Outcome: OutcomePending, Score: score, Quality: quality}

	switch {
	case score >= p.VoteThreshold && quality >= p.QualityMin:
		ev.Outcome = OutcomeApproved
		ev.Reason = "threshold"
	case p.Reject == RejectSymmetric && score <= -rejectThreshold(p):
		ev.Outcome = OutcomeRejected
		ev.Reason = "threshold"
	case score >= p.VoteThreshold:
		ev.Reason = "quality_below_min"
	}
	return ev
}

// AggregateQuality combines quality inputs, which must be in cast order.
// An empty input aggregates to zero.
func AggregateQuality(inputs []QualityInput, agg QualityAggregate) int {
	if len(inputs) == 0 {
		return 0
	}
	switch agg {
	case QualityMax:
		out := inputs[0].Quality
		for _, in := range inputs[1:] {
			out = max(out, in.Quality)
		}
		return out
	case QualityMin:
		out := inputs[0].Quality
		for _, in := range inputs[1:] {
			out = min(out, in.Quality)
		}
		return out
	case QualityLatest:
		return inputs[len(inputs)-1].Quality
	default:
		total := 0
		for _, in := range inputs {
			total += in.Quality
		}
		return total
	}
}

func rejectThreshold(p Policy) int {
	if p.RejectThreshold > 0 {
		return p.RejectThreshold
	}
	return p.VoteThreshold
}
