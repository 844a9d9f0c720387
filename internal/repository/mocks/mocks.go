package mocks

import (
	"context"

	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/stretchr/testify/mock"
)

// ItemRepository is a mock for item.Repository.
type ItemRepository struct {
	mock.Mock
}

func (m *ItemRepository) Put(ctx context.Context, it *item.Item) (item.PutResult, error) {
	args := m.Called(ctx, it)
	return args.Get(0).(item.PutResult), args.Error(1)
}

func (m *ItemRepository) Get(ctx context.Context, hash string) (*item.Item, error) {
	args := m.Called(ctx, hash)
	if it, ok := args.Get(0).(*item.Item); ok {
		return it, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ItemRepository) List(ctx context.Context, opts item.ListOptions) ([]item.Ref, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]item.Ref); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ItemRepository) Counts(ctx context.Context) (item.StatusCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(item.StatusCounts), args.Error(1)
}

// VoteRepository is a mock for vote.Repository.
type VoteRepository struct {
	mock.Mock
}

func (m *VoteRepository) Upsert(ctx context.Context, v *vote.Vote) (vote.Tally, error) {
	args := m.Called(ctx, v)
	return args.Get(0).(vote.Tally), args.Error(1)
}

func (m *VoteRepository) Tally(ctx context.Context, itemHash string) (vote.Tally, error) {
	args := m.Called(ctx, itemHash)
	return args.Get(0).(vote.Tally), args.Error(1)
}

func (m *VoteRepository) List(ctx context.Context, itemHash string) ([]vote.Contribution, error) {
	args := m.Called(ctx, itemHash)
	if list, ok := args.Get(0).([]vote.Contribution); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// DecisionRepository is a mock for approval.DecisionRepository.
type DecisionRepository struct {
	mock.Mock
}

func (m *DecisionRepository) Decide(ctx context.Context, hash string, status item.Status, entry *eventlog.Entry) (bool, error) {
	args := m.Called(ctx, hash, status, entry)
	return args.Bool(0), args.Error(1)
}

// StreamRepository is a mock for eventlog.Repository.
type StreamRepository struct {
	mock.Mock
}

func (m *StreamRepository) Append(ctx context.Context, entry *eventlog.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *StreamRepository) Read(ctx context.Context, stream eventlog.Stream, after int64, limit int) ([]eventlog.Entry, error) {
	args := m.Called(ctx, stream, after, limit)
	if list, ok := args.Get(0).([]eventlog.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StreamRepository) Head(ctx context.Context, stream eventlog.Stream) (int64, error) {
	args := m.Called(ctx, stream)
	return args.Get(0).(int64), args.Error(1)
}
