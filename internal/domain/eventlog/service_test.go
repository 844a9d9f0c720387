package eventlog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendPublishesAfterStore(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.StreamRepository{}
	repo.On("Append", ctx, mock.MatchedBy(func(e *eventlog.Entry) bool {
		return e.Stream == eventlog.StreamTrainingProgress && string(e.Payload) == `{"batch":1}`
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*eventlog.Entry).Offset = 9
	}).Return(nil)

	fanout := eventlog.NewFanout()
	sub := fanout.Subscribe()
	defer sub.Close()

	log := eventlog.NewLog(repo, fanout, nil)
	entry, err := log.Append(ctx, eventlog.StreamTrainingProgress, eventlog.TypeProgress, "", map[string]int{"batch": 1})
	require.NoError(t, err)
	require.Equal(t, int64(9), entry.Offset)

	n := <-sub.Events
	require.Equal(t, int64(9), n.Offset)
	require.NotEmpty(t, n.ID)
}

func TestLog_AppendFailureDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk gone")
	repo := &mocks.StreamRepository{}
	repo.On("Append", ctx, mock.Anything).Return(boom)

	fanout := eventlog.NewFanout()
	sub := fanout.Subscribe()
	defer sub.Close()

	_, err := eventlog.NewLog(repo, fanout, nil).Append(ctx, eventlog.StreamIngest, eventlog.TypeIngested, "h", nil)
	require.ErrorIs(t, err, boom)
	require.Empty(t, sub.Events)
}

func TestLog_UnknownStream(t *testing.T) {
	log := eventlog.NewLog(&mocks.StreamRepository{}, nil, nil)

	_, err := log.Read(context.Background(), "bogus", 0, 10)
	require.ErrorIs(t, err, eventlog.ErrUnknownStream)
	_, err = log.Append(context.Background(), "bogus", "x", "", nil)
	require.ErrorIs(t, err, eventlog.ErrUnknownStream)
}

func TestLog_ReadClampsLimit(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.StreamRepository{}
	repo.On("Read", ctx, eventlog.StreamApproved, int64(0), 1000).Return([]eventlog.Entry{}, nil)
	repo.On("Read", ctx, eventlog.StreamApproved, int64(5), 100).Return([]eventlog.Entry{}, nil)

	log := eventlog.NewLog(repo, nil, nil)
	_, err := log.Read(ctx, eventlog.StreamApproved, -3, 5000)
	require.NoError(t, err)
	_, err = log.Read(ctx, eventlog.StreamApproved, 5, 0)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
