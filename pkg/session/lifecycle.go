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
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agentgate/agentgate/pkg/agent"
)

// cancelTimeout bounds the fire-and-forget cancellation issued when a client
// abandons a stream.
const cancelTimeout = 10 * time.Second

const (
	lifecyclePending int32 = iota
	lifecycleCompleted
	lifecycleCancelled
)

// Lifecycle guards cleanup for one inbound request. It owns the computation
// only when the session is ephemeral; persistent sessions get observability
// and nothing else.
//
// The guard moves from pending to exactly one of completed or cancelled,
// no matter how often - or from how many goroutines - Complete and Close
// are called. Close must run on every exit path of the request: normal
// completion, handler error, and client abandonment.
type Lifecycle struct {
	owns       bool
	sessionID  string
	controller agent.Controller

	state atomic.Int32

	// onCancel is a test seam; nil in production.
	onCancel func()
}

func newLifecycle(owns bool, controller agent.Controller, sessionID string) *Lifecycle {
	return &Lifecycle{
		owns:       owns,
		sessionID:  sessionID,
		controller: controller,
	}
}

// Complete records that the outbound stream finished normally. Safe to call
// more than once; only the first transition counts.
func (l *Lifecycle) Complete() {
	if l.state.CompareAndSwap(lifecyclePending, lifecycleCompleted) {
		slog.Debug("stream completed normally", "session", l.sessionID)
	}
}

// Close finishes the guard. If the stream never completed normally the
// consumer went away mid-flight: for an ephemeral session the computation is
// cancelled, best-effort and without waiting for the effect. After Complete,
// Close is a no-op.
func (l *Lifecycle) Close() {
	if !l.state.CompareAndSwap(lifecyclePending, lifecycleCancelled) {
		return
	}
	if !l.owns {
		slog.Debug("client disconnected", "session", l.sessionID)
		return
	}

	slog.Info("client disconnected, cancelling computation", "session", l.sessionID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer cancel()
		if err := l.controller.Cancel(ctx); err != nil {
			// Cancellation is best-effort cleanup; never escalated.
			slog.Warn("cancellation failed", "session", l.sessionID, "error", err)
		}
		if l.onCancel != nil {
			l.onCancel()
		}
	}()
}
