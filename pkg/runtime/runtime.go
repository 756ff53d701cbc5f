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

// Package runtime assembles configured models and tools into running
// sessions.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/config"
	"github.com/agentgate/agentgate/pkg/engine"
	"github.com/agentgate/agentgate/pkg/model"
	"github.com/agentgate/agentgate/pkg/model/gemini"
	"github.com/agentgate/agentgate/pkg/observability"
	"github.com/agentgate/agentgate/pkg/session"
	"github.com/agentgate/agentgate/pkg/tool"
	"github.com/agentgate/agentgate/pkg/tool/mcptoolset"
)

// ErrUnknownModel is returned when a request names a model the configuration
// does not define.
var ErrUnknownModel = errors.New("unknown model")

// Runtime owns the config snapshot, the shared tool registry, and the
// registry of persistent sessions. It implements apis.SessionFactory.
type Runtime struct {
	mu  sync.RWMutex
	cfg *config.Config

	tools    *tool.Registry
	toolsets []*mcptoolset.Toolset
	tokens   *model.TokenCounter
	sessions *session.Registry
}

// New builds a runtime: it connects configured MCP servers and registers the
// builtin tools. MCP servers that fail to connect are skipped with a warning
// so one broken server cannot take the process down.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{
		cfg:      cfg,
		tools:    tool.NewRegistry(),
		tokens:   model.NewTokenCounter(),
		sessions: session.NewRegistry(),
	}

	rt.tools.Register(tool.Clock{})

	for _, mcpCfg := range cfg.Tools.MCP {
		ts, err := mcptoolset.Connect(ctx, toServerConfig(mcpCfg))
		if err != nil {
			slog.Warn("skipping MCP server", "server", mcpCfg.Name, "error", err)
			continue
		}
		rt.toolsets = append(rt.toolsets, ts)
		for _, t := range ts.Tools() {
			rt.tools.Register(t)
		}
	}

	rt.tools.Deny(cfg.Tools.Deny...)
	return rt, nil
}

func toServerConfig(cfg config.MCPServerConfig) mcptoolset.ServerConfig {
	sc := mcptoolset.ServerConfig{
		Name:      cfg.Name,
		Transport: cfg.Transport,
		Command:   cfg.Command,
		Args:      cfg.Args,
		Env:       cfg.Env,
		URL:       cfg.URL,
	}
	if cfg.OAuth != nil && !cfg.OAuth.Expired() {
		sc.Headers = map[string]string{
			"Authorization": "Bearer " + cfg.OAuth.AccessToken,
		}
	}
	return sc
}

// SetConfig swaps in a reloaded configuration. Running sessions keep the
// settings they started with; only new sessions see the update.
func (rt *Runtime) SetConfig(cfg *config.Config) {
	rt.mu.Lock()
	rt.cfg = cfg
	rt.mu.Unlock()
	rt.tools.Deny(cfg.Tools.Deny...)
}

// Tokens returns the shared token counter.
func (rt *Runtime) Tokens() *model.TokenCounter { return rt.tokens }

// Sessions returns the registry of persistent sessions.
func (rt *Runtime) Sessions() *session.Registry { return rt.sessions }

// NewSession starts a computation for the named model and binds it into a
// session. The computation's background task runs until the session is
// closed.
func (rt *Runtime) NewSession(ctx context.Context, id, modelName string, ephemeral bool) (*session.Session, error) {
	rt.mu.RLock()
	cfg := rt.cfg
	rt.mu.RUnlock()

	modelCfg, ok := cfg.Models[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	llm, err := rt.buildLLM(ctx, modelName, modelCfg)
	if err != nil {
		return nil, err
	}

	events := agent.NewBroadcaster(
		agent.WithBuffer(cfg.Stream.Buffer),
		agent.WithOverflowPolicy(overflowPolicy(cfg.Stream.Overflow)),
	)

	eng := engine.New(engine.Config{
		Model:         llm,
		Tools:         rt.tools,
		Events:        events,
		System:        modelCfg.System,
		MaxIterations: modelCfg.MaxIterations,
	})

	// The task context outlives the request; only closing the session
	// stops it.
	taskCtx, cancel := context.WithCancel(context.Background())
	go eng.Run(taskCtx)

	observability.Global().SessionStarted()
	stop := func() {
		cancel()
		observability.Global().SessionEnded()
	}
	return session.New(id, eng, events, stop, modelName, ephemeral), nil
}

func (rt *Runtime) buildLLM(ctx context.Context, name string, cfg config.ModelConfig) (model.LLM, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.New(ctx, cfg.APIKey, cfg.Model)
	case "mock":
		return &model.Mock{ModelName: name}, nil
	default:
		return nil, fmt.Errorf("%w: %s has unknown provider %q", ErrUnknownModel, name, cfg.Provider)
	}
}

func overflowPolicy(name string) agent.OverflowPolicy {
	if name == "close" {
		return agent.OverflowClose
	}
	return agent.OverflowDropOldest
}

// Close tears down every persistent session and MCP connection.
func (rt *Runtime) Close() {
	rt.sessions.Close()
	for _, ts := range rt.toolsets {
		if err := ts.Close(); err != nil {
			slog.Warn("MCP toolset close failed", "error", err)
		}
	}
}
