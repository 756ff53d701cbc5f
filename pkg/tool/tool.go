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

// Package tool defines the tool abstraction exposed to language models and a
// registry that executes calls.
package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Declaration describes a tool to the model.
type Declaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Tool is an executable capability. Execute returns the textual payload
// handed back to the model.
type Tool interface {
	Declaration() Declaration
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// SchemaFor reflects a JSON schema for the given argument struct, inlined
// and without $ref indirection.
func SchemaFor(v any) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(m, "$schema")
	return m
}
