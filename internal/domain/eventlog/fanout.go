package eventlog

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const defaultBufferSize = 256

// FanoutOption customizes Fanout construction.
type FanoutOption func(*Fanout)

// WithBufferSize overrides the buffered channel size per subscriber.
func WithBufferSize(size int) FanoutOption {
	return func(f *Fanout) {
		if size > 0 {
			f.bufferSize = size
		}
	}
}

// WithLogger injects a logger for drop diagnostics.
func WithLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		f.logger = logger
	}
}

// Fanout delivers notifications to registered observers. Delivery never
// blocks the publisher: a subscriber whose buffer is full misses the
// notification. Observers that need every entry read the stream instead.
type Fanout struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	bufferSize  int
	logger      *slog.Logger
	published   atomic.Int64
	dropped     atomic.Int64
}

// Subscription represents an active observer registration.
type Subscription struct {
	ID     string
	Events <-chan Notification
	cancel func()
}

// Close terminates the subscription and closes its channel.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewFanout constructs a fan-out registry.
func NewFanout(opts ...FanoutOption) *Fanout {
	f := &Fanout{
		subscribers: map[*subscriber]struct{}{},
		bufferSize:  defaultBufferSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Subscribe registers an observer for the given streams, or for all streams
// when none are named.
func (f *Fanout) Subscribe(streams ...Stream) Subscription {
	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan Notification, f.bufferSize),
	}
	if len(streams) > 0 {
		sub.streams = map[Stream]struct{}{}
		for _, s := range streams {
			sub.streams[s] = struct{}{}
		}
	}

	f.mu.Lock()
	f.subscribers[sub] = struct{}{}
	f.mu.Unlock()

	return Subscription{
		ID:     sub.id,
		Events: sub.ch,
		cancel: func() { f.remove(sub) },
	}
}

// Publish delivers n to every interested subscriber without blocking.
func (f *Fanout) Publish(n Notification) {
	f.published.Add(1)

	f.mu.RLock()
	subs := make([]*subscriber, 0, len(f.subscribers))
	for sub := range f.subscribers {
		if sub.wants(n.Stream) {
			subs = append(subs, sub)
		}
	}
	f.mu.RUnlock()

	for _, sub := range subs {
		if !sub.deliver(n) {
			f.dropped.Add(1)
			if f.logger != nil {
				f.logger.Debug("fanout drop", "subscriber", sub.id, "stream", n.Stream, "offset", n.Offset)
			}
		}
	}
}

// Stats reports delivery counters.
func (f *Fanout) Stats() FanoutStats {
	f.mu.RLock()
	subscribers := len(f.subscribers)
	f.mu.RUnlock()
	return FanoutStats{
		Subscribers: subscribers,
		Published:   f.published.Load(),
		Dropped:     f.dropped.Load(),
	}
}

// FanoutStats holds fan-out counters.
type FanoutStats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

func (f *Fanout) remove(sub *subscriber) {
	f.mu.Lock()
	delete(f.subscribers, sub)
	f.mu.Unlock()
	sub.close()
}

type subscriber struct {
	id      string
	ch      chan Notification
	streams map[Stream]struct{}
	mu      sync.Mutex
	closed  bool
}

func (s *subscriber) wants(stream Stream) bool {
	if s.streams == nil {
		return true
	}
	_, ok := s.streams[stream]
	return ok
}

// deliver reports false when the notification was dropped.
func (s *subscriber) deliver(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- n:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
