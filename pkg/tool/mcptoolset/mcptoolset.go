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

// Package mcptoolset discovers tools from MCP servers and adapts them to the
// tool interface.
package mcptoolset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentgate/agentgate/pkg/tool"
)

const protocolVersion = "2024-11-05"

// ServerConfig describes one MCP server connection.
type ServerConfig struct {
	Name      string
	Transport string // "stdio" or "streamable-http"

	// stdio transport
	Command string
	Args    []string
	Env     []string

	// streamable-http transport
	URL     string
	Headers map[string]string
}

// Toolset is a live connection to one MCP server and the tools it exposes.
type Toolset struct {
	name   string
	client *client.Client
	tools  []tool.Tool
}

// Connect starts the transport, runs the MCP handshake, and lists the
// server's tools.
func Connect(ctx context.Context, cfg ServerConfig) (*Toolset, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp %s: start: %w", cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "agentgate",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp %s: initialize: %w", cfg.Name, err)
	}

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp %s: list tools: %w", cfg.Name, err)
	}

	ts := &Toolset{name: cfg.Name, client: c}
	for _, t := range listed.Tools {
		ts.tools = append(ts.tools, &mcpTool{
			client:      c,
			server:      cfg.Name,
			name:        t.Name,
			description: t.Description,
			schema:      convertSchema(t.InputSchema),
		})
	}
	slog.Info("connected to MCP server", "server", cfg.Name, "tools", len(ts.tools))
	return ts, nil
}

func newClient(cfg ServerConfig) (*client.Client, error) {
	switch cfg.Transport {
	case "", "stdio":
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp %s: stdio transport requires a command", cfg.Name)
		}
		return client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	case "streamable-http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp %s: streamable-http transport requires a url", cfg.Name)
		}
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return client.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("mcp %s: unsupported transport %q", cfg.Name, cfg.Transport)
	}
}

// Tools returns the adapted tools. Tool names are prefixed with the server
// name to keep registries collision-free.
func (ts *Toolset) Tools() []tool.Tool { return ts.tools }

// Close shuts down the transport.
func (ts *Toolset) Close() error { return ts.client.Close() }

type mcpTool struct {
	client      *client.Client
	server      string
	name        string
	description string
	schema      map[string]any
}

func (t *mcpTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name:        t.server + "_" + t.name,
		Description: t.description,
		Parameters:  t.schema,
	}
}

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", t.name, err)
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	payload := strings.Join(parts, "\n")

	if result.IsError {
		return "", fmt.Errorf("%s", payload)
	}
	return payload, nil
}

// convertSchema flattens the typed MCP schema into the generic map form the
// model backends consume.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
