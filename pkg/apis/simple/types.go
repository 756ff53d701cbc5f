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

// Package simple serves the multimodal query protocol. Conversation turns
// arrive as untagged variants, recognized by which field is present, and
// tool activity is surfaced verbatim instead of as reasoning text.
package simple

import (
	"encoding/json"
	"errors"
)

// ToolCall identifies one tool invocation on the wire.
type ToolCall struct {
	Tool   string            `json:"tool"`
	Args   map[string]string `json:"args,omitempty"`
	Output string            `json:"output,omitempty"`
}

// ToolCallResult carries a tool outcome. At most one payload field is set.
type ToolCallResult struct {
	Text       string            `json:"text,omitempty"`
	TextStream string            `json:"text_stream,omitempty"`
	Image      string            `json:"image,omitempty"`
	Speech     string            `json:"speech,omitempty"`
	Other      string            `json:"other,omitempty"`
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// PreviousCall replays a tool invocation and its result from an earlier turn.
type PreviousCall struct {
	Call   ToolCall       `json:"call"`
	Result ToolCallResult `json:"result"`
}

// UserMessage is a user turn. AttachedFiles maps filename to base64 content.
type UserMessage struct {
	Message       string            `json:"message"`
	AttachedFiles map[string]string `json:"attached_files,omitempty"`
}

// AssistantMessage is a prior assistant turn.
type AssistantMessage struct {
	Assistant string `json:"assistant"`
}

// Message is one conversational turn. The wire form is untagged: exactly one
// of the variants is set, recognized by its discriminating field.
type Message struct {
	User      *UserMessage
	Assistant *AssistantMessage
	Previous  *PreviousCall
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var probe struct {
		Message   *json.RawMessage `json:"message"`
		Assistant *json.RawMessage `json:"assistant"`
		Call      *json.RawMessage `json:"call"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch {
	case probe.Message != nil:
		m.User = &UserMessage{}
		return json.Unmarshal(data, m.User)
	case probe.Assistant != nil:
		m.Assistant = &AssistantMessage{}
		return json.Unmarshal(data, m.Assistant)
	case probe.Call != nil:
		m.Previous = &PreviousCall{}
		return json.Unmarshal(data, m.Previous)
	default:
		return errors.New("message must carry one of: message, assistant, call")
	}
}

func (m Message) MarshalJSON() ([]byte, error) {
	switch {
	case m.User != nil:
		return json.Marshal(m.User)
	case m.Assistant != nil:
		return json.Marshal(m.Assistant)
	case m.Previous != nil:
		return json.Marshal(m.Previous)
	default:
		return nil, errors.New("empty message")
	}
}

// MultiModalQuery is the inbound body of POST /v1/multimodal.
type MultiModalQuery struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// MultiModalStreamingResponse is one streamed item. Assistant carries text,
// Call a started tool invocation, Call plus Result a finished one.
type MultiModalStreamingResponse struct {
	ID        string          `json:"id"`
	Model     string          `json:"model"`
	Assistant string          `json:"assistant,omitempty"`
	Call      *ToolCall       `json:"call,omitempty"`
	Result    *ToolCallResult `json:"result,omitempty"`
}

// ResponseMessage is one entry of the non-streaming result: either an
// assistant message or a replayed tool call, untagged like Message.
type ResponseMessage struct {
	Assistant *AssistantMessage
	Previous  *PreviousCall
}

func (m ResponseMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.Assistant != nil:
		return json.Marshal(m.Assistant)
	case m.Previous != nil:
		return json.Marshal(m.Previous)
	default:
		return nil, errors.New("empty response message")
	}
}

func (m *ResponseMessage) UnmarshalJSON(data []byte) error {
	var probe struct {
		Assistant *json.RawMessage `json:"assistant"`
		Call      *json.RawMessage `json:"call"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch {
	case probe.Assistant != nil:
		m.Assistant = &AssistantMessage{}
		return json.Unmarshal(data, m.Assistant)
	case probe.Call != nil:
		m.Previous = &PreviousCall{}
		return json.Unmarshal(data, m.Previous)
	default:
		return errors.New("response message must carry one of: assistant, call")
	}
}

// MultiModalResponse is the non-streaming response body.
type MultiModalResponse struct {
	ID     string            `json:"id"`
	Model  string            `json:"model"`
	Result []ResponseMessage `json:"result"`
}
