package training

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/semantix/internal/domain/eventlog"
)

// DefaultPollInterval is how often a worker runs without notifications.
const DefaultPollInterval = 5 * time.Second

// Subscriber provides best-effort stream notifications.
type Subscriber interface {
	Subscribe(streams ...eventlog.Stream) eventlog.Subscription
}

// Worker keeps one run configuration up to date. It runs the consumer on
// every poll tick and whenever an approval is announced. Notifications are
// only a wake-up; the approved stream stays the source of truth.
type Worker struct {
	consumer   *Consumer
	cfg        RunConfig
	interval   time.Duration
	subscriber Subscriber
	logger     *slog.Logger

	mu   sync.Mutex
	last *RunResult
}

// NewWorker creates a worker. subscriber may be nil to rely on polling.
func NewWorker(consumer *Consumer, cfg RunConfig, interval time.Duration, subscriber Subscriber, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{consumer: consumer, cfg: cfg, interval: interval, subscriber: subscriber, logger: logger}
}

// Run blocks until ctx is done. Run failures are logged and retried on the
// next wake-up.
func (w *Worker) Run(ctx context.Context) error {
	var wake <-chan eventlog.Notification
	if w.subscriber != nil {
		sub := w.subscriber.Subscribe(eventlog.StreamApproved)
		defer sub.Close()
		wake = sub.Events
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			drain(wake)
		}
		w.runOnce(ctx)
	}
}

// Last returns the result of the most recent run, or nil.
func (w *Worker) Last() *RunResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Worker) runOnce(ctx context.Context) {
	res, err := w.consumer.Run(ctx, w.cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if errors.Is(err, ErrRunInProgress) {
			w.logger.Debug("training run skipped", "error", err)
			return
		}
		w.logger.Error("training run failed", "error", err)
		return
	}
	w.mu.Lock()
	w.last = res
	w.mu.Unlock()
}

func drain(ch <-chan eventlog.Notification) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
