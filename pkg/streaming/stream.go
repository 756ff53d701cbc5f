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
	"errors"
	"io"
	"log/slog"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/observability"
	"github.com/agentgate/agentgate/pkg/session"
)

// Stream pulls events from a subscription through a formatter and yields
// serialized JSON chunks. The stream ends, reported as io.EOF, when a
// terminal event has been delivered, when the subscription closes, or when
// the subscription is cut off by overflow. A lag under the drop-oldest
// policy is a gap, not the end: it is logged and delivery resumes with the
// oldest retained event.
type Stream struct {
	sub       *agent.Subscription
	formatter Formatter
	sessionID string
	done      bool
	failed    bool
}

// New assembles a stream over sub. The stream takes over reading from sub;
// callers must not call sub.Next themselves afterwards.
func New(sub *agent.Subscription, formatter Formatter, sessionID string) *Stream {
	return &Stream{
		sub:       sub,
		formatter: formatter,
		sessionID: sessionID,
	}
}

// Next returns the next serialized chunk. io.EOF marks the natural end of
// the stream; context errors propagate unchanged. Serialization failures are
// logged, the chunk is skipped, and the stream continues.
func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		ev, err := s.sub.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			var lag *agent.LagError
			if errors.As(err, &lag) {
				slog.Warn("subscriber lagging, events dropped", "session", s.sessionID, "dropped", lag.Missed)
				continue
			}
			if !errors.Is(err, agent.ErrClosed) {
				slog.Error("event subscription failed", "session", s.sessionID, "error", err)
				s.failed = true
			}
			s.done = true
			return nil, io.EOF
		}

		if IsTerminal(ev) {
			s.done = true
		}

		out, ok := s.formatter.Format(ev, s.sessionID)
		if !ok {
			if s.done {
				return nil, io.EOF
			}
			continue
		}

		data, err := json.Marshal(out)
		if err != nil {
			slog.Error("failed to serialize chunk", "session", s.sessionID, "error", err)
			if s.done {
				return nil, io.EOF
			}
			continue
		}
		return data, nil
	}
}

// Guarded couples a Stream with the request's lifecycle guard. Reaching
// natural end-of-stream records normal completion; being closed before that
// is the observable signature of a consumer that stopped pulling - an HTTP
// client disconnecting mid-SSE - and triggers the guard's cancellation path.
// No transport-level disconnect signal is consulted.
type Guarded struct {
	stream    *Stream
	lifecycle *session.Lifecycle
	completed bool
}

// NewGuarded wraps stream with lifecycle ownership.
func NewGuarded(stream *Stream, lifecycle *session.Lifecycle) *Guarded {
	return &Guarded{stream: stream, lifecycle: lifecycle}
}

// Next forwards to the underlying stream. On the first io.EOF the session is
// marked as completed normally before end-of-stream is reported. An end
// forced by a subscription failure (overflow cut-off) is not completion: the
// computation is still running unobserved, so cleanup is left to Close.
func (g *Guarded) Next(ctx context.Context) ([]byte, error) {
	data, err := g.stream.Next(ctx)
	if errors.Is(err, io.EOF) && !g.completed && !g.stream.failed {
		g.completed = true
		g.lifecycle.Complete()
		observability.Global().StreamCompleted()
	}
	return data, err
}

// Close must run on every exit path of the request. It detaches the
// subscription from the broadcaster; if the stream never reached its natural
// end, abandonment is inferred and the lifecycle's cleanup fires. After
// normal completion only the detach happens.
func (g *Guarded) Close() {
	if !g.completed {
		observability.Global().StreamAbandoned()
	}
	g.stream.sub.Close()
	g.lifecycle.Close()
}

// Pump drains the guarded stream into w until it ends. A nil return means
// the stream completed normally; any error means the consumer side failed or
// went away, and the caller's deferred Close will handle cleanup.
func Pump(ctx context.Context, w *SSEWriter, g *Guarded) error {
	for {
		data, err := g.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.Send(data); err != nil {
			return err
		}
	}
}
