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

package streaming

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/session"
)

// echoFormatter renders events as small JSON objects; StatusChanged events
// are suppressed like every real formatter does.
type echoFormatter struct{}

func (echoFormatter) Format(ev agent.Event, _ string) (any, bool) {
	switch e := ev.(type) {
	case *agent.Completed:
		return map[string]string{"kind": "completed", "text": e.Message}, true
	case *agent.Failed:
		return map[string]string{"kind": "failed", "text": e.Message}, true
	case *agent.BrainResult:
		return map[string]string{"kind": "thinking", "text": e.Thought.Content}, true
	default:
		return nil, false
	}
}

type recordingController struct {
	mu      sync.Mutex
	cancels int
}

func (r *recordingController) SubmitInput(context.Context, string) error { return nil }

func (r *recordingController) Cancel(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
	return nil
}

func (r *recordingController) cancelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancels
}

func testRequest(t *testing.T, ctrl agent.Controller, events *agent.Broadcaster) *session.Request {
	t.Helper()
	s := session.New("sess-1", ctrl, events, func() {}, "", true)
	req, err := s.HandleRequest(context.Background(), "req-1", nil)
	require.NoError(t, err)
	return req
}

func next(t *testing.T, s interface {
	Next(context.Context) ([]byte, error)
}) (map[string]string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	data, err := s.Next(ctx)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	return m, nil
}

func TestStreamEndsAtTerminalEvent(t *testing.T) {
	events := agent.NewBroadcaster()
	req := testRequest(t, &recordingController{}, events)
	stream := New(req.Events, echoFormatter{}, "sess-1")

	events.Publish(&agent.BrainResult{Thought: &agent.Message{Role: agent.RoleAssistant, Content: "thinking"}})
	events.Publish(&agent.Completed{Message: "done"})
	// Published after the terminal event; must never surface.
	events.Publish(&agent.Failed{Message: "late"})

	chunk, err := next(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "thinking", chunk["text"])

	chunk, err = next(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "done", chunk["text"])

	_, err = next(t, stream)
	assert.ErrorIs(t, err, io.EOF)
	_, err = next(t, stream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamEndsWhenBroadcasterCloses(t *testing.T) {
	events := agent.NewBroadcaster()
	req := testRequest(t, &recordingController{}, events)
	stream := New(req.Events, echoFormatter{}, "sess-1")

	events.Close()
	_, err := next(t, stream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamSuppressedTerminal(t *testing.T) {
	events := agent.NewBroadcaster()
	req := testRequest(t, &recordingController{}, events)
	stream := New(req.Events, echoFormatter{}, "sess-1")

	// Pause transition is terminal but the formatter suppresses it.
	events.Publish(&agent.StatusChanged{Old: agent.StatusRunning, New: agent.StatusPaused})
	_, err := next(t, stream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGuardedNaturalEndDoesNotCancel(t *testing.T) {
	ctrl := &recordingController{}
	events := agent.NewBroadcaster()
	req := testRequest(t, ctrl, events)
	g := NewGuarded(New(req.Events, echoFormatter{}, "sess-1"), req.Lifecycle)

	events.Publish(&agent.Completed{Message: "done"})

	_, err := next(t, g)
	require.NoError(t, err)
	_, err = next(t, g)
	require.ErrorIs(t, err, io.EOF)

	// The deferred close after a completed stream is a no-op.
	g.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ctrl.cancelCount())
}

func TestGuardedTeardownBeforeEndCancels(t *testing.T) {
	ctrl := &recordingController{}
	events := agent.NewBroadcaster()
	req := testRequest(t, ctrl, events)
	g := NewGuarded(New(req.Events, echoFormatter{}, "sess-1"), req.Lifecycle)

	events.Publish(&agent.BrainResult{Thought: &agent.Message{Role: agent.RoleAssistant, Content: "partial"}})
	_, err := next(t, g)
	require.NoError(t, err)

	// The consumer stops pulling mid-stream. No transport signal exists;
	// teardown alone must infer the disconnect.
	g.Close()

	deadline := time.Now().Add(time.Second)
	for ctrl.cancelCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, ctrl.cancelCount())
}

func TestStreamResumesAfterLag(t *testing.T) {
	ctrl := &recordingController{}
	events := agent.NewBroadcaster(agent.WithBuffer(2), agent.WithOverflowPolicy(agent.OverflowDropOldest))
	req := testRequest(t, ctrl, events)
	g := NewGuarded(New(req.Events, echoFormatter{}, "sess-1"), req.Lifecycle)

	for i := 1; i <= 4; i++ {
		events.Publish(&agent.BrainResult{Thought: &agent.Message{Role: agent.RoleAssistant, Content: "thought"}})
	}
	// Overwrites the oldest retained thought; the buffer now holds one
	// thought and the terminal event.
	events.Publish(&agent.Completed{Message: "done"})

	// The gap is skipped over, not surfaced as end-of-stream: the retained
	// events, terminal included, still arrive.
	chunk, err := next(t, g)
	require.NoError(t, err)
	assert.Equal(t, "thought", chunk["text"])

	chunk, err = next(t, g)
	require.NoError(t, err)
	assert.Equal(t, "done", chunk["text"])

	_, err = next(t, g)
	require.ErrorIs(t, err, io.EOF)

	// The stream reached its natural end despite the lag, so teardown
	// must not cancel.
	g.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ctrl.cancelCount())
}

func TestGuardedOverflowCutoffCancels(t *testing.T) {
	ctrl := &recordingController{}
	events := agent.NewBroadcaster(agent.WithBuffer(1), agent.WithOverflowPolicy(agent.OverflowClose))
	req := testRequest(t, ctrl, events)
	g := NewGuarded(New(req.Events, echoFormatter{}, "sess-1"), req.Lifecycle)

	events.Publish(&agent.BrainResult{Thought: &agent.Message{Role: agent.RoleAssistant, Content: "one"}})
	events.Publish(&agent.BrainResult{Thought: &agent.Message{Role: agent.RoleAssistant, Content: "two"}})

	chunk, err := next(t, g)
	require.NoError(t, err)
	assert.Equal(t, "one", chunk["text"])

	// The cut-off ends the stream, but the computation never delivered a
	// terminal event, so this is not a normal completion.
	_, err = next(t, g)
	require.ErrorIs(t, err, io.EOF)

	g.Close()
	deadline := time.Now().Add(time.Second)
	for ctrl.cancelCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, ctrl.cancelCount())
}

func TestGuardedCloseDetachesSubscription(t *testing.T) {
	ctrl := &recordingController{}
	events := agent.NewBroadcaster()
	req := testRequest(t, ctrl, events)
	g := NewGuarded(New(req.Events, echoFormatter{}, "sess-1"), req.Lifecycle)

	events.Publish(&agent.Completed{Message: "done"})
	_, err := next(t, g)
	require.NoError(t, err)
	_, err = next(t, g)
	require.ErrorIs(t, err, io.EOF)

	g.Close()

	// The subscription is gone from the broadcaster; later publishes have
	// nowhere to pile up and a direct read reports the closed stream.
	events.Publish(&agent.BrainResult{Thought: &agent.Message{Role: agent.RoleAssistant, Content: "late"}})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = req.Events.Next(ctx)
	assert.ErrorIs(t, err, agent.ErrClosed)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(&agent.Completed{}))
	assert.True(t, IsTerminal(&agent.Failed{}))
	assert.True(t, IsTerminal(&agent.StatusChanged{Old: agent.StatusRunning, New: agent.StatusPaused}))
	assert.False(t, IsTerminal(&agent.StatusChanged{Old: agent.StatusPaused, New: agent.StatusRunning}))
	assert.False(t, IsTerminal(&agent.BrainResult{}))
	assert.False(t, IsTerminal(&agent.ToolCallStarted{}))
}
