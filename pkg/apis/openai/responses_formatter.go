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

package openai

import (
	"fmt"
	"time"

	"github.com/agentgate/agentgate/pkg/agent"
)

// StreamEvent is one server-sent event of the responses protocol.
type StreamEvent struct {
	Type     string    `json:"type"`
	Delta    string    `json:"delta,omitempty"`
	Response *Response `json:"response,omitempty"`
}

// ResponsesFormatter renders agent events as responses stream events.
// Intermediate thinking and tool activity become reasoning deltas; the
// terminal event carries the full response object.
type ResponsesFormatter struct {
	created int64
}

func NewResponsesFormatter() *ResponsesFormatter {
	return &ResponsesFormatter{created: time.Now().Unix()}
}

// Format implements streaming.Formatter.
func (f *ResponsesFormatter) Format(ev agent.Event, sessionID string) (any, bool) {
	switch e := ev.(type) {
	case *agent.BrainResult:
		if e.Err != nil || e.Thought == nil || e.Thought.Content == "" {
			return nil, false
		}
		return &StreamEvent{Type: "response.reasoning_text.delta", Delta: e.Thought.Content}, true

	case *agent.ToolCallStarted:
		return &StreamEvent{
			Type:  "response.reasoning_text.delta",
			Delta: fmt.Sprintf("[toolcall: %s]", e.Call.ToolName),
		}, true

	case *agent.ToolCallCompleted:
		return &StreamEvent{
			Type:  "response.reasoning_text.delta",
			Delta: describeToolResult(e.Call.ToolName, e.Result),
		}, true

	case *agent.Completed:
		return &StreamEvent{Type: "response.completed", Response: f.finalResponse(sessionID, e.Message, "completed")}, true

	case *agent.Failed:
		return &StreamEvent{Type: "response.failed", Response: f.finalResponse(sessionID, "Error: "+e.Message, "failed")}, true

	default:
		return nil, false
	}
}

func (f *ResponsesFormatter) finalResponse(sessionID, text, status string) *Response {
	return &Response{
		ID:        sessionID,
		Object:    "response",
		CreatedAt: f.created,
		Status:    status,
		Output: []ResponseOutput{{
			Type: "message",
			Role: "assistant",
			Content: []ResponseContent{{
				Type: "output_text",
				Text: text,
			}},
		}},
	}
}
