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

// Package engine runs one agent computation: it drives the model, executes
// tool calls, and publishes progress on a broadcaster.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/model"
	"github.com/agentgate/agentgate/pkg/observability"
	"github.com/agentgate/agentgate/pkg/tool"
)

const defaultMaxIterations = 20

var ErrStopped = errors.New("computation stopped")

// Config assembles an engine.
type Config struct {
	Model  model.LLM
	Tools  *tool.Registry
	Events *agent.Broadcaster
	System string

	// MaxIterations bounds the tool-call loop of a single turn.
	MaxIterations int
}

// Engine is the reference Controller implementation. Inputs are queued and
// consumed by the background task started with Run; events appear on the
// broadcaster in emission order.
type Engine struct {
	model         model.LLM
	tools         *tool.Registry
	events        *agent.Broadcaster
	system        string
	maxIterations int

	mu      sync.Mutex
	pending []string
	history []agent.Message
	status  agent.Status

	wake     chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func New(cfg Config) *Engine {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	return &Engine{
		model:         cfg.Model,
		tools:         cfg.Tools,
		events:        cfg.Events,
		system:        cfg.System,
		maxIterations: maxIter,
		status:        agent.StatusPaused,
		wake:          make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// SubmitInput implements agent.Controller. The input is queued; the
// background task picks it up in order.
func (e *Engine) SubmitInput(ctx context.Context, text string) error {
	select {
	case <-e.stopCh:
		return ErrStopped
	default:
	}

	e.mu.Lock()
	e.pending = append(e.pending, text)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Cancel implements agent.Controller. The first call stops the computation;
// the caller is released once the background task has wound down.
func (e *Engine) Cancel(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the computation's background task. It returns when ctx is cancelled
// or Cancel is called, closing the broadcaster on the way out.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	defer e.events.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}
		if !e.consumePending() {
			continue
		}
		e.runTurn(ctx)
	}
}

// consumePending moves queued inputs into the conversation. Reports whether
// anything was there to consume.
func (e *Engine) consumePending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) == 0 {
		return false
	}
	for _, text := range e.pending {
		e.history = append(e.history, agent.Message{Role: agent.RoleUser, Content: text})
	}
	e.pending = nil
	return true
}

func (e *Engine) runTurn(ctx context.Context) {
	e.setStatus(agent.StatusRunning)

	for i := 0; i < e.maxIterations; i++ {
		reply, err := e.model.Generate(ctx, &model.Request{
			System:   e.system,
			Messages: e.snapshot(),
			Tools:    e.tools.Declarations(),
		})
		if err != nil {
			if ctx.Err() != nil {
				// Cancellation is not a failure; nothing to report.
				slog.Debug("turn interrupted", "error", err)
				return
			}
			e.events.Publish(&agent.Failed{Message: err.Error()})
			e.setStatus(agent.StatusFailed)
			return
		}
		observability.Global().RecordTokens(e.model.Name(), reply.Usage.PromptTokens, reply.Usage.CompletionTokens)

		if len(reply.ToolCalls) == 0 {
			e.append(agent.Message{Role: agent.RoleAssistant, Content: reply.Content})
			e.events.Publish(&agent.Completed{Message: reply.Content, Success: true})
			e.setStatus(agent.StatusPaused)
			return
		}

		// Intermediate reasoning alongside tool use surfaces as a thought.
		if reply.Content != "" {
			e.events.Publish(&agent.BrainResult{
				Thought: &agent.Message{Role: agent.RoleAssistant, Content: reply.Content},
			})
			e.append(agent.Message{Role: agent.RoleAssistant, Content: reply.Content})
		}

		for _, call := range reply.ToolCalls {
			e.events.Publish(&agent.ToolCallStarted{Call: call})
			result := e.tools.Execute(ctx, call)
			e.events.Publish(&agent.ToolCallCompleted{Call: call, Result: result})
			e.append(agent.Message{Role: agent.RoleTool, Content: toolMessage(call, result)})
		}
	}

	e.events.Publish(&agent.Failed{Message: "max tool iterations reached"})
	e.setStatus(agent.StatusFailed)
}

func toolMessage(call agent.ToolCall, result agent.ToolResult) string {
	switch result.Status {
	case agent.ToolResultSuccess:
		return call.ToolName + ": " + result.Payload
	case agent.ToolResultDenied:
		return call.ToolName + ": denied"
	default:
		return call.ToolName + " failed: " + result.Error
	}
}

func (e *Engine) append(msg agent.Message) {
	e.mu.Lock()
	e.history = append(e.history, msg)
	e.mu.Unlock()
}

func (e *Engine) snapshot() []agent.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]agent.Message, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) setStatus(status agent.Status) {
	e.mu.Lock()
	old := e.status
	e.status = status
	e.mu.Unlock()

	if old != status {
		e.events.Publish(&agent.StatusChanged{Old: old, New: status})
	}
}
