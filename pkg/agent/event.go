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

// Package agent defines the event vocabulary and control surface shared by
// every running computation.
//
// A computation (an agent run) is opaque to the rest of the system: it is
// reachable only through a Controller, and it reports progress by publishing
// Events on a Broadcaster. Events are immutable once published and totally
// ordered in emission order.
package agent

import "context"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Status is the externally visible state of a computation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Message is a single conversational message.
type Message struct {
	Role    string
	Content string
}

// ToolCall identifies one tool invocation requested by the model.
type ToolCall struct {
	ToolName  string
	Arguments map[string]any
}

// ToolResultStatus discriminates the outcome of a tool call.
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
	ToolResultDenied  ToolResultStatus = "denied"
)

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	Status  ToolResultStatus
	Payload string
	Error   string
}

// ToolSuccess builds a successful tool result.
func ToolSuccess(payload string) ToolResult {
	return ToolResult{Status: ToolResultSuccess, Payload: payload}
}

// ToolError builds a failed tool result.
func ToolError(message string) ToolResult {
	return ToolResult{Status: ToolResultError, Error: message}
}

// ToolDenied builds a denied tool result.
func ToolDenied() ToolResult {
	return ToolResult{Status: ToolResultDenied}
}

// Event is one unit of progress emitted by a running computation.
//
// The set of implementations is closed: consumers switch on the concrete
// type. Events never arrive out of emission order on any subscription.
type Event interface {
	isEvent()
}

// BrainResult carries the model's reply for one reasoning step. Thought is
// nil when the step failed, in which case Err holds the cause.
type BrainResult struct {
	Thought *Message
	Err     error
}

// ToolCallStarted announces that a tool invocation has begun.
type ToolCallStarted struct {
	Call ToolCall
}

// ToolCallCompleted reports the outcome of an earlier ToolCallStarted.
type ToolCallCompleted struct {
	Call   ToolCall
	Result ToolResult
}

// StatusChanged reports a transition of the computation's visible status.
type StatusChanged struct {
	Old Status
	New Status
}

// Completed is the computation's final answer for the current run.
type Completed struct {
	Message string
	Success bool
}

// Failed reports that the computation aborted with an error.
type Failed struct {
	Message string
}

func (BrainResult) isEvent()       {}
func (ToolCallStarted) isEvent()   {}
func (ToolCallCompleted) isEvent() {}
func (StatusChanged) isEvent()     {}
func (Completed) isEvent()         {}
func (Failed) isEvent()            {}

// Controller is the control surface for a running computation. Multiple
// logical owners may hold the same Controller.
type Controller interface {
	// SubmitInput forwards one user-authored turn to the computation.
	SubmitInput(ctx context.Context, text string) error

	// Cancel stops the computation. Idempotent: the first call takes
	// effect, later calls return nil without fault even after the
	// computation has finished on its own.
	Cancel(ctx context.Context) error
}
