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

// Package session binds one running computation to its control handle, its
// event stream, and its background task.
//
// A session is either ephemeral (torn down when the request that created it
// ends) or persistent (kept in a Registry until explicitly removed). Access
// to the computation's Controller is serialized per session; different
// sessions are fully independent.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentgate/agentgate/pkg/agent"
)

// Turn is one prior conversational turn supplied by the caller.
type Turn struct {
	Role    string
	Content string
}

// Request couples the per-request subscription with the lifecycle guard for
// exactly one inbound HTTP request.
type Request struct {
	Controller agent.Controller
	Events     *agent.Subscription
	Lifecycle  *Lifecycle
}

// Session is one running computation instance.
type Session struct {
	id          string
	displayName string
	ephemeral   bool

	// mu serializes access to the controller so input submissions from
	// concurrent requests never interleave. It is held only for the
	// duration of a single Cancel or HandleRequest call - never while
	// waiting on a subscription.
	mu         sync.Mutex
	controller agent.Controller
	events     *agent.Broadcaster

	stop     context.CancelFunc
	stopOnce sync.Once
}

// New binds a computation's parts into a session. stop aborts the
// computation's background task; it is invoked exactly once, from Close.
func New(id string, controller agent.Controller, events *agent.Broadcaster, stop context.CancelFunc, displayName string, ephemeral bool) *Session {
	if displayName == "" {
		displayName = "default"
	}
	return &Session{
		id:          id,
		displayName: displayName,
		ephemeral:   ephemeral,
		controller:  controller,
		events:      events,
		stop:        stop,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// DisplayName returns the human-readable agent name.
func (s *Session) DisplayName() string { return s.displayName }

// Ephemeral reports whether the session is torn down with its request.
func (s *Session) Ephemeral() bool { return s.ephemeral }

// Cancel stops the underlying computation and waits for the cancellation
// call to resolve. Errors propagate as-is.
func (s *Session) Cancel(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Debug("cancelling session", "request", requestID, "session", s.id)
	return s.controller.Cancel(ctx)
}

// Watch returns a fresh read-only subscription to the session's events. Safe
// to call concurrently with HandleRequest; the subscription sees only events
// published after this call.
func (s *Session) Watch() *agent.Subscription {
	return s.events.Subscribe()
}

// WatchRequest opens a read-only view of the session for one inbound request.
// No turns are forwarded and the returned lifecycle guard never cancels the
// computation, whatever the watcher does.
func (s *Session) WatchRequest() *Request {
	return &Request{
		Controller: s.controller,
		Events:     s.events.Subscribe(),
		Lifecycle:  newLifecycle(false, s.controller, s.id),
	}
}

// HandleRequest prepares the session for one inbound request: it subscribes
// to the event stream, then replays the caller-supplied turns by forwarding
// each non-empty user turn to the controller, in order. On any submission
// failure the whole call fails and no further turns are forwarded.
//
// The returned Request carries a Lifecycle guard whose Close must run on
// every exit path of the request.
func (s *Session) HandleRequest(ctx context.Context, requestID string, turns []Turn) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Debug("handling request", "request", requestID, "session", s.id)

	// Subscribe before submitting so the events triggered by these turns
	// cannot be missed: subscriptions have no replay.
	sub := s.events.Subscribe()

	for _, turn := range turns {
		if turn.Role != agent.RoleUser || turn.Content == "" {
			continue
		}
		if err := s.controller.SubmitInput(ctx, turn.Content); err != nil {
			sub.Close()
			return nil, fmt.Errorf("submit turn: %w", err)
		}
	}

	return &Request{
		Controller: s.controller,
		Events:     sub,
		Lifecycle:  newLifecycle(s.ephemeral, s.controller, s.id),
	}, nil
}

// Close aborts the session's background task. Idempotent and safe to call
// from any goroutine; in-flight subscriptions simply observe stream end.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		slog.Debug("closing session", "session", s.id)
		s.stop()
	})
}
