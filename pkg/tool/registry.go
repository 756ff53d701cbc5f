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

package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentgate/agentgate/pkg/agent"
)

// Registry holds the tools available to a computation. Tools on the deny
// list stay visible to the model but every call is refused.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	denied map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		denied: make(map[string]bool),
	}
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Declaration().Name] = t
}

// Deny refuses all future calls to the named tools.
func (r *Registry) Deny(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.denied[name] = true
	}
}

// Declarations lists every registered tool.
func (r *Registry) Declarations() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]Declaration, 0, len(r.tools))
	for _, t := range r.tools {
		decls = append(decls, t.Declaration())
	}
	return decls
}

// Execute runs one tool call and folds every outcome, including failure,
// into a result. Errors never propagate past this point.
func (r *Registry) Execute(ctx context.Context, call agent.ToolCall) agent.ToolResult {
	r.mu.RLock()
	t, ok := r.tools[call.ToolName]
	denied := r.denied[call.ToolName]
	r.mu.RUnlock()

	if denied {
		return agent.ToolDenied()
	}
	if !ok {
		return agent.ToolError(fmt.Sprintf("unknown tool %q", call.ToolName))
	}

	payload, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		slog.Debug("tool call failed", "tool", call.ToolName, "error", err)
		return agent.ToolError(err.Error())
	}
	return agent.ToolSuccess(payload)
}
