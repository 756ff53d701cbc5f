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

package simple

import (
	"fmt"

	"github.com/agentgate/agentgate/pkg/agent"
)

// Formatter renders agent events as multimodal streaming items. One instance
// serves one stream.
type Formatter struct {
	model string
}

func NewFormatter(model string) *Formatter { return &Formatter{model: model} }

// Format implements streaming.Formatter.
func (f *Formatter) Format(ev agent.Event, sessionID string) (any, bool) {
	switch e := ev.(type) {
	case *agent.BrainResult:
		if e.Err != nil || e.Thought == nil || e.Thought.Content == "" {
			return nil, false
		}
		return f.item(sessionID, e.Thought.Content, nil, nil), true

	case *agent.ToolCallStarted:
		call := wireCall(e.Call)
		return f.item(sessionID, "", &call, nil), true

	case *agent.ToolCallCompleted:
		call := wireCall(e.Call)
		result := wireResult(e.Result)
		return f.item(sessionID, "", &call, &result), true

	case *agent.Completed:
		return f.item(sessionID, e.Message, nil, nil), true

	case *agent.Failed:
		return f.item(sessionID, "Error: "+e.Message, nil, nil), true

	default:
		return nil, false
	}
}

func (f *Formatter) item(sessionID, assistant string, call *ToolCall, result *ToolCallResult) *MultiModalStreamingResponse {
	return &MultiModalStreamingResponse{
		ID:        sessionID,
		Model:     f.model,
		Assistant: assistant,
		Call:      call,
		Result:    result,
	}
}

func wireCall(c agent.ToolCall) ToolCall {
	tc := ToolCall{Tool: c.ToolName}
	if len(c.Arguments) > 0 {
		tc.Args = make(map[string]string, len(c.Arguments))
		for k, v := range c.Arguments {
			tc.Args[k] = fmt.Sprint(v)
		}
	}
	return tc
}

func wireResult(r agent.ToolResult) ToolCallResult {
	switch r.Status {
	case agent.ToolResultSuccess:
		return ToolCallResult{Text: r.Payload}
	case agent.ToolResultDenied:
		return ToolCallResult{Error: "denied"}
	default:
		return ToolCallResult{Error: r.Error}
	}
}
