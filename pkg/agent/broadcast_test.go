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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextWithTimeout(t *testing.T, sub *Subscription) (Event, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sub.Next(ctx)
}

func TestBroadcastOrdering(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 10; i++ {
		b.Publish(&Completed{Message: fmt.Sprintf("msg-%d", i)})
	}

	for i := 0; i < 10; i++ {
		ev, err := nextWithTimeout(t, sub)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("msg-%d", i), ev.(*Completed).Message)
	}
}

func TestLateSubscriberSeesNoHistory(t *testing.T) {
	b := NewBroadcaster()

	b.Publish(&Completed{Message: "before"})
	sub := b.Subscribe()
	b.Publish(&Completed{Message: "after"})
	b.Close()

	ev, err := nextWithTimeout(t, sub)
	require.NoError(t, err)
	assert.Equal(t, "after", ev.(*Completed).Message)

	_, err = nextWithTimeout(t, sub)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIndependentSubscribers(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	a := b.Subscribe()
	c := b.Subscribe()
	b.Publish(&Failed{Message: "boom"})

	for _, sub := range []*Subscription{a, c} {
		ev, err := nextWithTimeout(t, sub)
		require.NoError(t, err)
		assert.Equal(t, "boom", ev.(*Failed).Message)
	}

	// Closing one subscriber leaves the other attached.
	a.Close()
	b.Publish(&Failed{Message: "again"})
	ev, err := nextWithTimeout(t, c)
	require.NoError(t, err)
	assert.Equal(t, "again", ev.(*Failed).Message)
}

func TestOverflowDropOldest(t *testing.T) {
	b := NewBroadcaster(WithBuffer(2), WithOverflowPolicy(OverflowDropOldest))
	defer b.Close()

	sub := b.Subscribe()
	for i := 0; i < 5; i++ {
		b.Publish(&Completed{Message: fmt.Sprintf("msg-%d", i)})
	}

	// The slow consumer learns how much it missed, then reads the
	// survivors in order.
	_, err := nextWithTimeout(t, sub)
	var lag *LagError
	require.ErrorAs(t, err, &lag)
	assert.Equal(t, uint64(3), lag.Missed)

	for _, want := range []string{"msg-3", "msg-4"} {
		ev, err := nextWithTimeout(t, sub)
		require.NoError(t, err)
		assert.Equal(t, want, ev.(*Completed).Message)
	}
}

func TestOverflowClosePolicy(t *testing.T) {
	b := NewBroadcaster(WithBuffer(1), WithOverflowPolicy(OverflowClose))
	defer b.Close()

	slow := b.Subscribe()
	b.Publish(&Completed{Message: "one"})
	b.Publish(&Completed{Message: "two"})

	ev, err := nextWithTimeout(t, slow)
	require.NoError(t, err)
	assert.Equal(t, "one", ev.(*Completed).Message)

	_, err = nextWithTimeout(t, slow)
	assert.ErrorIs(t, err, ErrOverflow)

	// A fresh subscriber is unaffected by the evicted one.
	fresh := b.Subscribe()
	b.Publish(&Completed{Message: "three"})
	ev, err = nextWithTimeout(t, fresh)
	require.NoError(t, err)
	assert.Equal(t, "three", ev.(*Completed).Message)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()
	b.Close()
	b.Close()
	b.Publish(&Completed{Message: "late"})

	_, err := nextWithTimeout(t, sub)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster()
	b.Close()

	sub := b.Subscribe()
	_, err := nextWithTimeout(t, sub)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNextHonorsContext(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()
	sub := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
