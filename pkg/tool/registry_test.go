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
	"errors"
	"testing"

	"github.com/agentgate/agentgate/pkg/agent"
)

type echoTool struct {
	err error
}

func (e echoTool) Declaration() Declaration {
	return Declaration{Name: "echo", Description: "Echo the input back"}
}

func (e echoTool) Execute(_ context.Context, args map[string]any) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	text, _ := args["text"].(string)
	return text, nil
}

func TestRegistryExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})

	res := r.Execute(context.Background(), agent.ToolCall{
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	if res.Status != agent.ToolResultSuccess {
		t.Fatalf("status = %s, want success", res.Status)
	}
	if res.Payload != "hi" {
		t.Fatalf("payload = %q, want %q", res.Payload, "hi")
	}
}

func TestRegistryExecuteFoldsErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{err: errors.New("disk full")})

	res := r.Execute(context.Background(), agent.ToolCall{ToolName: "echo"})
	if res.Status != agent.ToolResultError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if res.Error != "disk full" {
		t.Fatalf("error = %q, want %q", res.Error, "disk full")
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	res := r.Execute(context.Background(), agent.ToolCall{ToolName: "nope"})
	if res.Status != agent.ToolResultError {
		t.Fatalf("status = %s, want error", res.Status)
	}
}

func TestRegistryDeniedTool(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})
	r.Deny("echo")

	res := r.Execute(context.Background(), agent.ToolCall{ToolName: "echo"})
	if res.Status != agent.ToolResultDenied {
		t.Fatalf("status = %s, want denied", res.Status)
	}

	// Denied tools stay visible to the model.
	if len(r.Declarations()) != 1 {
		t.Fatalf("declarations = %d, want 1", len(r.Declarations()))
	}
}

func TestSchemaFor(t *testing.T) {
	type args struct {
		City string `json:"city" jsonschema:"description=City name"`
	}
	schema := SchemaFor(&args{})
	if schema["type"] != "object" {
		t.Fatalf("schema type = %v, want object", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok || props["city"] == nil {
		t.Fatalf("schema missing city property: %v", schema)
	}
}
