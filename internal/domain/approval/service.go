package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/repository"
)

// Service drives items from voting to a terminal status.
type Service struct {
	items     ItemRepository
	votes     VoteLedger
	decisions DecisionRepository
	announcer Announcer
	policy    vote.Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new approval service. The policy is copied and never
// re-read. announcer may be nil.
func NewService(items ItemRepository, votes VoteLedger, decisions DecisionRepository, announcer Announcer, policy vote.Policy, logger *slog.Logger) *Service {
	return &Service{
		items:     items,
		votes:     votes,
		decisions: decisions,
		announcer: announcer,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// CastResult describes the effect of one vote. Stale is set when the item
// was already terminal: the vote is kept for audit but not evaluated.
// Decided is set only for the caller whose vote moved the item.
type CastResult struct {
	Tally      vote.Tally      `json:"tally"`
	Evaluation vote.Evaluation `json:"evaluation"`
	Status     item.Status     `json:"status"`
	Stale      bool            `json:"stale"`
	Decided    bool            `json:"decided"`
	Entry      *eventlog.Entry `json:"entry,omitempty"`
}

// CastVote records a vote and, when the tally crosses a threshold, moves the
// item to its terminal status. Concurrent crossings produce one decision.
func (s *Service) CastVote(ctx context.Context, req vote.CastRequest) (*CastResult, error) {
	v, err := req.Validate()
	if err != nil {
		return nil, err
	}

	it, err := s.getItem(ctx, v.ItemHash)
	if err != nil {
		return nil, err
	}

	v.CastAt = s.now().UTC()
	tally, err := s.votes.Record(ctx, v)
	if err != nil {
		return nil, err
	}

	result := &CastResult{Tally: tally, Status: it.Status}
	if it.Status.Terminal() {
		result.Stale = true
		if s.logger != nil {
			s.logger.Debug("stale vote", "item", it.Hash, "voter", v.VoterID, "status", it.Status)
		}
		return result, nil
	}

	result.Evaluation = vote.Evaluate(tally, s.policy)
	target, ok := statusFor(result.Evaluation.Outcome)
	if !ok {
		return result, nil
	}

	entry, err := s.decide(ctx, it.Hash, target, decisionPayload(tally, result.Evaluation, "", result.Evaluation.Reason))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		current, err := s.getItem(ctx, it.Hash)
		if err != nil {
			return nil, err
		}
		result.Status = current.Status
		return result, nil
	}

	result.Status = target
	result.Decided = true
	result.Entry = entry
	if s.logger != nil {
		s.logger.Info("item decided", "item", it.Hash, "status", target, "score", result.Evaluation.Score, "quality", result.Evaluation.Quality, "offset", entry.Offset)
	}
	return result, nil
}

// ModerateRequest defines an explicit approve or reject.
type ModerateRequest struct {
	ItemHash string
	Action   string
	Actor    string
	Reason   string
}

// Moderate overrides the vote outcome for an item still in voting.
func (s *Service) Moderate(ctx context.Context, req ModerateRequest) (*CastResult, error) {
	var target item.Status
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case item.EventApprove, string(item.StatusApproved):
		target = item.StatusApproved
	case item.EventReject, string(item.StatusRejected):
		target = item.StatusRejected
	default:
		return nil, ErrInvalidAction
	}

	it, err := s.getItem(ctx, req.ItemHash)
	if err != nil {
		return nil, err
	}
	if err := item.ValidateTransition(it.Status, target); err != nil {
		return nil, err
	}

	tally, err := s.votes.Tally(ctx, it.Hash)
	if err != nil {
		return nil, err
	}
	ev := vote.Evaluate(tally, s.policy)

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "moderation"
	}
	entry, err := s.decide(ctx, it.Hash, target, decisionPayload(tally, ev, req.Actor, reason))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, item.ErrInvalidTransition
	}
	if s.logger != nil {
		s.logger.Info("item moderated", "item", it.Hash, "status", target, "actor", req.Actor)
	}
	return &CastResult{
		Tally:      tally,
		Evaluation: ev,
		Status:     target,
		Decided:    true,
		Entry:      entry,
	}, nil
}

// State is a point-in-time view of an item's voting.
type State struct {
	Item          *item.Item          `json:"item"`
	Tally         vote.Tally          `json:"tally"`
	Evaluation    vote.Evaluation     `json:"evaluation"`
	Contributions []vote.Contribution `json:"contributions"`
}

// GetState returns the item with its tally and current evaluation.
func (s *Service) GetState(ctx context.Context, hash string) (*State, error) {
	it, err := s.getItem(ctx, hash)
	if err != nil {
		return nil, err
	}
	tally, err := s.votes.Tally(ctx, it.Hash)
	if err != nil {
		return nil, err
	}
	contributions, err := s.votes.Contributions(ctx, it.Hash)
	if err != nil {
		return nil, err
	}
	return &State{
		Item:          it,
		Tally:         tally,
		Evaluation:    vote.Evaluate(tally, s.policy),
		Contributions: contributions,
	}, nil
}

// decide returns nil without error when another caller won the swap.
func (s *Service) decide(ctx context.Context, hash string, target item.Status, payload eventlog.DecisionPayload) (*eventlog.Entry, error) {
	if err := item.ValidateTransition(item.StatusVoting, target); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding decision: %w", err)
	}

	stream, eventType := eventlog.StreamApproved, eventlog.TypeApproved
	if target == item.StatusRejected {
		stream, eventType = eventlog.StreamRejected, eventlog.TypeRejected
	}
	entry := &eventlog.Entry{
		Stream:    stream,
		Type:      eventType,
		ItemHash:  hash,
		Payload:   raw,
		CreatedAt: s.now().UTC(),
	}

	won, err := s.decisions.Decide(ctx, hash, target, entry)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, item.ErrItemNotFound
		}
		return nil, fmt.Errorf("deciding item: %w", err)
	}
	if !won {
		return nil, nil
	}
	if s.announcer != nil {
		s.announcer.Announce(*entry)
	}
	return entry, nil
}

func (s *Service) getItem(ctx context.Context, hash string) (*item.Item, error) {
	it, err := s.items.Get(ctx, strings.TrimSpace(hash))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, item.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return it, nil
}

func statusFor(outcome vote.Outcome) (item.Status, bool) {
	switch outcome {
	case vote.OutcomeApproved:
		return item.StatusApproved, true
	case vote.OutcomeRejected:
		return item.StatusRejected, true
	}
	return "", false
}

func decisionPayload(t vote.Tally, ev vote.Evaluation, actor, reason string) eventlog.DecisionPayload {
	return eventlog.DecisionPayload{
		Score:   ev.Score,
		Quality: ev.Quality,
		Voters:  t.Voters,
		Counts:  t.CountsByName(),
		Reason:  reason,
		Actor:   actor,
	}
}
