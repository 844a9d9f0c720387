package training_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/stretchr/testify/require"
)

func TestWorker_WakesOnApproval(t *testing.T) {
	h := newHarness(t)
	c := h.consumer(t, newWriter(t), nil)
	w := training.NewWorker(c, training.RunConfig{QualityMin: 1}, time.Hour, h.fanout, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return w.Last() != nil }, 2*time.Second, 10*time.Millisecond)
	h.approve(t, "wake the worker", "quality")

	require.Eventually(t, func() bool {
		last := w.Last()
		return last != nil && last.Processed == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_CappedRunDoesNotGrow(t *testing.T) {
	h := newHarness(t)
	h.approveN(t, 2, "quality")
	c := h.consumer(t, newWriter(t), nil)
	cfg := training.RunConfig{QualityMin: 1, MaxRecords: 2, BatchSize: 10}
	w := training.NewWorker(c, cfg, time.Hour, h.fanout, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		last := w.Last()
		return last != nil && last.Processed == 2
	}, 2*time.Second, 10*time.Millisecond)
	first := w.Last()

	for i := range 3 {
		h.approve(t, fmt.Sprintf("past the cap %d", i), "quality")
	}
	require.Eventually(t, func() bool { return w.Last() != first }, 2*time.Second, 10*time.Millisecond)
	require.Zero(t, w.Last().Processed)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	cp, err := h.checkpoints.Load(cfg.Key())
	require.NoError(t, err)
	require.Equal(t, 2, cp.Processed)
}
