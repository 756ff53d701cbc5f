// Copyright 2026 The Agentgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// OverflowPolicy selects what happens when a subscriber's buffer is full at
// publish time.
type OverflowPolicy string

const (
	// OverflowDropOldest discards the subscriber's oldest buffered event
	// to make room. The loss is surfaced to that subscriber as a LagError
	// on its next read.
	OverflowDropOldest OverflowPolicy = "drop_oldest"

	// OverflowClose closes the lagging subscription. Its next read after
	// draining returns ErrOverflow.
	OverflowClose OverflowPolicy = "close"
)

// DefaultBuffer is the per-subscription buffer used when none is configured.
const DefaultBuffer = 256

var (
	// ErrClosed is returned by Subscription.Next once the producer has
	// finished (or was aborted) and all buffered events are drained.
	ErrClosed = errors.New("event stream closed")

	// ErrOverflow is returned after a subscription was closed by the
	// OverflowClose policy.
	ErrOverflow = errors.New("subscription closed: buffer overflow")
)

// LagError reports that a slow subscription missed events under the
// OverflowDropOldest policy. Delivery resumes with the oldest retained event.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscription lagged: %d events dropped", e.Missed)
}

// Broadcaster fans one computation's event sequence out to any number of
// independent subscribers. Publish is single-producer: only the owning
// computation calls it, never concurrently with itself. A subscription
// observes only events published after it was created; there is no replay.
//
// A slow subscriber never blocks the producer or other subscribers - each
// subscription has its own bounded buffer and the configured OverflowPolicy
// decides, per subscriber, what happens when that buffer fills up.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	buffer int
	policy OverflowPolicy
}

// BroadcastOption configures a Broadcaster.
type BroadcastOption func(*Broadcaster)

// WithBuffer sets the per-subscription buffer size.
func WithBuffer(n int) BroadcastOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithOverflowPolicy sets the overflow policy for slow subscribers.
func WithOverflowPolicy(p OverflowPolicy) BroadcastOption {
	return func(b *Broadcaster) {
		if p == OverflowDropOldest || p == OverflowClose {
			b.policy = p
		}
	}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(opts ...BroadcastOption) *Broadcaster {
	b := &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: DefaultBuffer,
		policy: OverflowDropOldest,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe returns a new subscription starting at "now". May be called at
// any time, including after publication has started or after Close; a
// subscription created on a closed broadcaster immediately reports ErrClosed.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		owner: b,
		ch:    make(chan Event, b.buffer),
	}
	if b.closed {
		close(sub.ch)
		sub.done = true
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers ev to every live subscription, in order. It never blocks
// on a slow subscriber.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}

		switch b.policy {
		case OverflowClose:
			sub.overflowed = true
			delete(b.subs, sub)
			close(sub.ch)
		default: // OverflowDropOldest
			select {
			case <-sub.ch:
				sub.missed++
			default:
			}
			// A slot is free now: either we dropped one, or the
			// reader drained in between. Single producer, so this
			// send cannot race another Publish.
			sub.ch <- ev
		}
	}
}

// Close ends the stream. Subscribers drain their buffers and then observe
// ErrClosed. Safe to call more than once.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*Subscription]struct{})
}

// Subscription is one consumer's cursor into the event sequence. It is not
// safe for concurrent use by multiple goroutines.
type Subscription struct {
	owner *Broadcaster
	ch    chan Event

	// missed and overflowed are written under owner.mu; the subscriber
	// reads them only from Next, after observing the corresponding
	// channel state, so no additional synchronization is needed.
	missed     uint64
	overflowed bool

	done bool
}

// Next blocks until the next event is available, the stream ends, or ctx is
// done. It returns ErrClosed at the natural end of the stream, a *LagError
// once after events were dropped for this subscriber, and ErrOverflow if the
// subscription was closed by the OverflowClose policy.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	if s.done {
		return nil, ErrClosed
	}
	if n := s.takeMissed(); n > 0 {
		return nil, &LagError{Missed: n}
	}

	select {
	case ev, ok := <-s.ch:
		if !ok {
			s.done = true
			if s.overflowed {
				return nil, ErrOverflow
			}
			return nil, ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close detaches the subscription from the broadcaster. Pending events are
// discarded. Safe to call more than once; never needed after Next returned
// ErrClosed, but harmless then.
func (s *Subscription) Close() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	if _, ok := s.owner.subs[s]; ok {
		delete(s.owner.subs, s)
		close(s.ch)
	}
}

func (s *Subscription) takeMissed() uint64 {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	n := s.missed
	s.missed = 0
	return n
}
