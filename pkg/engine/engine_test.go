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

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/model"
	"github.com/agentgate/agentgate/pkg/tool"
)

type stubTool struct{}

func (stubTool) Declaration() tool.Declaration {
	return tool.Declaration{Name: "lookup_capital", Description: "Look up a capital city"}
}

func (stubTool) Execute(context.Context, map[string]any) (string, error) {
	return "Paris", nil
}

func startEngine(t *testing.T, llm model.LLM) (*Engine, *agent.Subscription, context.CancelFunc) {
	t.Helper()

	tools := tool.NewRegistry()
	tools.Register(stubTool{})

	events := agent.NewBroadcaster()
	eng := New(Config{Model: llm, Tools: tools, Events: events})

	sub := events.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	t.Cleanup(cancel)
	return eng, sub, cancel
}

func collectUntilTerminal(t *testing.T, sub *agent.Subscription) []agent.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out []agent.Event
	for {
		ev, err := sub.Next(ctx)
		require.NoError(t, err)
		out = append(out, ev)
		switch ev.(type) {
		case *agent.Completed, *agent.Failed:
			return out
		}
	}
}

func TestEngineToolFlow(t *testing.T) {
	llm := &model.Mock{Replies: []*model.Reply{
		{Content: "let me check", ToolCalls: []agent.ToolCall{{ToolName: "lookup_capital"}}},
		{Content: "Paris is the capital"},
	}}
	eng, sub, _ := startEngine(t, llm)

	require.NoError(t, eng.SubmitInput(context.Background(), "capital of France?"))
	events := collectUntilTerminal(t, sub)

	var kinds []string
	for _, ev := range events {
		switch e := ev.(type) {
		case *agent.StatusChanged:
			kinds = append(kinds, "status:"+string(e.New))
		case *agent.BrainResult:
			kinds = append(kinds, "thought")
			assert.Equal(t, "let me check", e.Thought.Content)
		case *agent.ToolCallStarted:
			kinds = append(kinds, "tool-start")
		case *agent.ToolCallCompleted:
			kinds = append(kinds, "tool-done")
			assert.Equal(t, agent.ToolResultSuccess, e.Result.Status)
			assert.Equal(t, "Paris", e.Result.Payload)
		case *agent.Completed:
			kinds = append(kinds, "completed")
			assert.Equal(t, "Paris is the capital", e.Message)
			assert.True(t, e.Success)
		}
	}
	assert.Equal(t, []string{"status:running", "thought", "tool-start", "tool-done", "completed"}, kinds)
}

func TestEngineModelFailure(t *testing.T) {
	llm := &model.Mock{Err: errors.New("backend timeout")}
	eng, sub, _ := startEngine(t, llm)

	require.NoError(t, eng.SubmitInput(context.Background(), "hello"))
	events := collectUntilTerminal(t, sub)

	failed := events[len(events)-1].(*agent.Failed)
	assert.Equal(t, "backend timeout", failed.Message)
}

func TestEngineCancelIdempotent(t *testing.T) {
	eng, sub, _ := startEngine(t, &model.Mock{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, eng.Cancel(ctx))
	require.NoError(t, eng.Cancel(ctx))
	require.NoError(t, eng.Cancel(ctx))

	assert.ErrorIs(t, eng.SubmitInput(context.Background(), "late"), ErrStopped)

	// The broadcaster closes once the background task winds down.
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, agent.ErrClosed)
}

func TestEngineStopsWhenContextCancelled(t *testing.T) {
	eng, sub, cancel := startEngine(t, &model.Mock{})
	cancel()

	ctx, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, agent.ErrClosed)

	// Cancel still resolves cleanly after the task is gone.
	require.NoError(t, eng.Cancel(ctx))
}

func TestEngineSequentialTurns(t *testing.T) {
	llm := &model.Mock{Replies: []*model.Reply{{Content: "first"}, {Content: "second"}}}
	eng, sub, _ := startEngine(t, llm)

	require.NoError(t, eng.SubmitInput(context.Background(), "one"))
	events := collectUntilTerminal(t, sub)
	assert.Equal(t, "first", events[len(events)-1].(*agent.Completed).Message)

	require.NoError(t, eng.SubmitInput(context.Background(), "two"))
	events = collectUntilTerminal(t, sub)
	assert.Equal(t, "second", events[len(events)-1].(*agent.Completed).Message)
}
