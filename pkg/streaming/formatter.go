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

// Package streaming turns a session's event feed into a protocol-specific
// sequence of serialized chunks and pushes it to an HTTP client as SSE,
// while inferring client disconnection without any transport signal.
package streaming

import "github.com/agentgate/agentgate/pkg/agent"

// Formatter translates one domain event into zero or one protocol-specific
// output chunks. Format is called once per event, strictly in delivery
// order, never concurrently on the same instance; implementations may keep
// state across calls (for example the latest full assistant text). The
// second return value is false when the event produces no output.
type Formatter interface {
	Format(ev agent.Event, sessionID string) (any, bool)
}

// IsTerminal reports whether ev ends the whole exchange, for every protocol:
// a completion, a failure, or a status change into a paused state. Once a
// terminal event is observed the assembly emits at most one more chunk (the
// terminal one, if it formats to output) and closes the outbound stream.
func IsTerminal(ev agent.Event) bool {
	switch e := ev.(type) {
	case *agent.Completed:
		return true
	case *agent.Failed:
		return true
	case *agent.StatusChanged:
		return e.New == agent.StatusPaused
	}
	return false
}
