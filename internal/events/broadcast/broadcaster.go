// Package broadcast fans encoded notification frames out to connected
// clients. Every subscriber owns a bounded ring; when a slow subscriber's
// ring is full its oldest frame is dropped so publishers never block.
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Next once the subscription or broadcaster is closed.
var ErrClosed = errors.New("broadcast: subscription closed")

// Broadcaster is a bounded fan-out of frames.
type Broadcaster struct {
	capacity int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New creates a Broadcaster whose subscribers buffer up to capacity frames.
func New(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = 1
	}
	return &Broadcaster{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber. Only frames published afterwards are delivered.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		b:     b,
		ring:  make([][]byte, b.capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closeLocked()
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers frame to every subscriber without blocking.
func (b *Broadcaster) Publish(frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		s.push(frame)
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.mu.Lock()
		s.closeLocked()
		s.mu.Unlock()
	}
	b.subs = make(map[*Subscription]struct{})
}

// Subscription is one subscriber's view of the broadcast.
type Subscription struct {
	b *Broadcaster

	mu      sync.Mutex
	ring    [][]byte
	head    int
	size    int
	dropped uint64
	closed  bool
	ready   chan struct{}
	done    chan struct{}
}

func (s *Subscription) push(frame []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.size == len(s.ring) {
		s.ring[s.head] = nil
		s.head = (s.head + 1) % len(s.ring)
		s.size--
		s.dropped++
	}
	s.ring[(s.head+s.size)%len(s.ring)] = frame
	s.size++
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Subscription) pop() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == 0 {
		return nil, false
	}
	frame := s.ring[s.head]
	s.ring[s.head] = nil
	s.head = (s.head + 1) % len(s.ring)
	s.size--
	return frame, true
}

// Next blocks until a frame is available, ctx is done, or the subscription closes.
// Frames still buffered when the subscription closes are discarded.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-s.done:
			return nil, ErrClosed
		default:
		}
		if frame, ok := s.pop(); ok {
			return frame, nil
		}
		select {
		case <-s.ready:
		case <-s.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Dropped returns how many frames were discarded because the ring was full.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()

	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	for i := range s.ring {
		s.ring[i] = nil
	}
	s.size = 0
	close(s.done)
}
