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

// Package model abstracts LLM backends behind a single Generate call.
package model

import (
	"context"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/tool"
)

// Request is one generation request.
type Request struct {
	System   string
	Messages []agent.Message
	Tools    []tool.Declaration
}

// TokenUsage is the backend-reported token accounting for one call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// Reply is the backend's answer: assistant text, requested tool calls, or
// both.
type Reply struct {
	Content   string
	ToolCalls []agent.ToolCall
	Usage     TokenUsage
}

// LLM is a language model backend.
type LLM interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Reply, error)
}
