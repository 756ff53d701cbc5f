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

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgate/agentgate/pkg/agent"
)

// fakeController records calls. onSubmit, when set, runs inside SubmitInput
// before the input is recorded.
type fakeController struct {
	mu        sync.Mutex
	inputs    []string
	cancels   int
	submitErr error
	cancelErr error
	onSubmit  func(text string)
}

func (f *fakeController) SubmitInput(_ context.Context, text string) error {
	if f.onSubmit != nil {
		f.onSubmit(text)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.inputs = append(f.inputs, text)
	return nil
}

func (f *fakeController) Cancel(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return f.cancelErr
}

func (f *fakeController) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.inputs))
	copy(out, f.inputs)
	return out
}

func (f *fakeController) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

func newTestSession(ctrl *fakeController, ephemeral bool) (*Session, *agent.Broadcaster, *int) {
	events := agent.NewBroadcaster()
	stops := 0
	s := New("sess-1", ctrl, events, func() { stops++ }, "", ephemeral)
	return s, events, &stops
}

func TestHandleRequestForwardsOnlyUserTurns(t *testing.T) {
	ctrl := &fakeController{}
	s, _, _ := newTestSession(ctrl, true)

	req, err := s.HandleRequest(context.Background(), "req-1", []Turn{
		{Role: agent.RoleUser, Content: "hello"},
		{Role: agent.RoleUser, Content: ""},
		{Role: agent.RoleAssistant, Content: "hi there"},
		{Role: agent.RoleSystem, Content: "be nice"},
	})
	require.NoError(t, err)
	defer req.Events.Close()

	assert.Equal(t, []string{"hello"}, ctrl.recorded())
}

func TestHandleRequestSubscribesBeforeForwarding(t *testing.T) {
	events := agent.NewBroadcaster()
	defer events.Close()

	// The controller publishes synchronously from SubmitInput, the
	// earliest moment a computation could react. The request's
	// subscription must not miss it.
	ctrl := &fakeController{}
	ctrl.onSubmit = func(text string) {
		events.Publish(&agent.Completed{Message: "echo: " + text})
	}
	s := New("sess-1", ctrl, events, func() {}, "", true)

	req, err := s.HandleRequest(context.Background(), "req-1", []Turn{
		{Role: agent.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := req.Events.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", ev.(*agent.Completed).Message)
}

func TestHandleRequestSubmitFailure(t *testing.T) {
	ctrl := &fakeController{submitErr: errors.New("queue full")}
	s, _, _ := newTestSession(ctrl, true)

	_, err := s.HandleRequest(context.Background(), "req-1", []Turn{
		{Role: agent.RoleUser, Content: "hello"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}

func TestSessionCancelDelegates(t *testing.T) {
	ctrl := &fakeController{}
	s, _, _ := newTestSession(ctrl, false)

	require.NoError(t, s.Cancel(context.Background(), "req-1"))
	require.NoError(t, s.Cancel(context.Background(), "req-2"))
	assert.Equal(t, 2, ctrl.cancelCount())

	ctrl.cancelErr = errors.New("already stopped")
	assert.Error(t, s.Cancel(context.Background(), "req-3"))
}

func TestSessionCloseAbortsTaskOnce(t *testing.T) {
	ctrl := &fakeController{}
	s, _, stops := newTestSession(ctrl, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, *stops)
}

func TestWatchRequestIsNonOwning(t *testing.T) {
	ctrl := &fakeController{}
	s, events, _ := newTestSession(ctrl, true)
	defer events.Close()

	req := s.WatchRequest()
	req.Lifecycle.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ctrl.cancelCount(), "watch teardown must never cancel the computation")
}

func TestSessionAccessors(t *testing.T) {
	ctrl := &fakeController{}
	s, _, _ := newTestSession(ctrl, true)

	assert.Equal(t, "sess-1", s.ID())
	assert.Equal(t, "default", s.DisplayName())
	assert.True(t, s.Ephemeral())
}
