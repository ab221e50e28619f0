package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/metrics"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// DefaultQueueSize caps a subscriber mailbox when no size is configured.
const DefaultQueueSize = 4096

// Broadcaster fans center events out to subscribers. Publish never blocks:
// every subscriber owns a mailbox that the publisher appends to under a
// short lock, and the subscriber drains it on its own goroutine.
type Broadcaster struct {
	mu        sync.RWMutex
	subs      map[*Subscription]struct{}
	queueSize int
}

// NewBroadcaster creates a broadcaster whose mailboxes hold at most
// queueSize events each.
func NewBroadcaster(queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		subs:      make(map[*Subscription]struct{}),
		queueSize: queueSize,
	}
}

// Subscribe registers a new mailbox. It receives only events published
// after this call returns.
func (b *Broadcaster) Subscribe(name string) *Subscription {
	s := &Subscription{
		name:  name,
		limit: b.queueSize,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
		bus:   b,
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	logger.Debug("bus subscriber added", zap.String("subscriber", name))
	return s
}

// Publish delivers ev to every subscriber registered at the time of the call.
func (b *Broadcaster) Publish(ev domain.Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.push(ev)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one subscriber's ordered mailbox.
//
// Consumers either select on Ready() and call Drain() from their own event
// loop, or block in Next.
type Subscription struct {
	name  string
	limit int

	mu      sync.Mutex
	queue   []domain.Event
	dropped int
	closed  bool

	ready chan struct{}
	done  chan struct{}
	bus   *Broadcaster
}

// Name returns the subscriber name given at Subscribe.
func (s *Subscription) Name() string { return s.name }

// Ready is signalled (coalesced) whenever events are waiting.
func (s *Subscription) Ready() <-chan struct{} { return s.ready }

// Done is closed by Close.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Drain removes and returns every waiting event in publish order.
func (s *Subscription) Drain() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	out := s.queue
	s.queue = nil
	return out
}

// Next blocks until an event is available, ctx is done or the subscription
// is closed.
func (s *Subscription) Next(ctx context.Context) (domain.Event, error) {
	for {
		if ev, ok := s.pop(); ok {
			return ev, nil
		}
		select {
		case <-s.ready:
		case <-s.done:
			return domain.Event{}, ErrSubscriptionClosed
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		}
	}
}

// Dropped returns how many events were discarded because the mailbox was full.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscription. Waiting events are discarded.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	s.bus.remove(s)
	close(s.done)
}

func (s *Subscription) pop() (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return domain.Event{}, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

func (s *Subscription) push(ev domain.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	dropped := false
	if len(s.queue) >= s.limit {
		s.queue = s.queue[1:]
		s.dropped++
		dropped = true
	}
	s.queue = append(s.queue, ev)
	firstDrop := dropped && s.dropped == 1
	s.mu.Unlock()

	if dropped {
		metrics.SubscriberDrops.WithLabelValues(s.name).Inc()
		if firstDrop {
			logger.Warn("bus subscriber is not keeping up; dropping oldest events",
				zap.String("subscriber", s.name),
				zap.Int("queue_size", s.limit),
			)
		}
	}

	select {
	case s.ready <- struct{}{}:
	default:
	}
}
