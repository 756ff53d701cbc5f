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

package model

import "context"

// Mock is a scripted backend used for development and tests. Each Generate
// call pops the next reply; once the script is exhausted it keeps returning
// the last one.
type Mock struct {
	ModelName string
	Replies   []*Reply
	Err       error

	calls int
}

func (m *Mock) Name() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

func (m *Mock) Generate(ctx context.Context, req *Request) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Replies) == 0 {
		return &Reply{Content: "ok"}, nil
	}

	i := m.calls
	if i >= len(m.Replies) {
		i = len(m.Replies) - 1
	}
	m.calls++
	return m.Replies[i], nil
}
