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
	"strings"
	"time"

	"github.com/agentgate/agentgate/pkg/agent"
)

var finishStop = "stop"

// ChatCompletionFormatter renders agent events as chat.completion.chunk
// payloads. Tool activity and intermediate thinking are surfaced on
// reasoning_content; only the terminal event carries content. The formatter
// is stateful and must not be shared across streams.
type ChatCompletionFormatter struct {
	model       string
	created     int64
	accumulated string
	sentRole    bool
}

// NewChatCompletionFormatter returns a formatter for one stream.
func NewChatCompletionFormatter(model string) *ChatCompletionFormatter {
	return &ChatCompletionFormatter{model: model, created: time.Now().Unix()}
}

// Format implements streaming.Formatter.
func (f *ChatCompletionFormatter) Format(ev agent.Event, sessionID string) (any, bool) {
	switch e := ev.(type) {
	case *agent.BrainResult:
		if e.Err != nil || e.Thought == nil || e.Thought.Content == "" {
			return nil, false
		}
		// Each thought is the full text so far; keep only the latest.
		f.accumulated = e.Thought.Content
		return f.chunk(sessionID, DeltaMessage{ReasoningContent: e.Thought.Content}, nil), true

	case *agent.ToolCallStarted:
		return f.reasoning(sessionID, fmt.Sprintf("[toolcall: %s]", e.Call.ToolName)), true

	case *agent.ToolCallCompleted:
		return f.reasoning(sessionID, describeToolResult(e.Call.ToolName, e.Result)), true

	case *agent.Completed:
		content := e.Message
		if content == "" {
			content = f.accumulated
		}
		return f.chunk(sessionID, DeltaMessage{Content: content}, &finishStop), true

	case *agent.Failed:
		return f.chunk(sessionID, DeltaMessage{Content: "Error: " + e.Message}, &finishStop), true

	default:
		return nil, false
	}
}

func describeToolResult(name string, res agent.ToolResult) string {
	switch res.Status {
	case agent.ToolResultSuccess:
		return fmt.Sprintf("[tool succeeded: %s]", name)
	case agent.ToolResultDenied:
		return fmt.Sprintf("[tool denied: %s]", name)
	default:
		reason, _, _ := strings.Cut(res.Error, "\n")
		return fmt.Sprintf("[tool failed: %s - %s]", name, reason)
	}
}

func (f *ChatCompletionFormatter) reasoning(sessionID, text string) *ChunkResponse {
	return f.chunk(sessionID, DeltaMessage{ReasoningContent: text}, nil)
}

func (f *ChatCompletionFormatter) chunk(sessionID string, delta DeltaMessage, finish *string) *ChunkResponse {
	if !f.sentRole {
		f.sentRole = true
		delta.Role = "assistant"
	}
	return &ChunkResponse{
		ID:      "chatcmpl-" + sessionID,
		Object:  "chat.completion.chunk",
		Created: f.created,
		Model:   f.model,
		Choices: []ChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
	}
}
