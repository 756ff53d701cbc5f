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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
models:
  assistant:
    provider: mock
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Stream.Buffer)
	assert.Equal(t, "drop_oldest", cfg.Stream.Overflow)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "agentgate", cfg.Observability.ServiceName)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret-key")

	cfg, err := Load(writeConfig(t, `
server:
  port: ${TEST_PORT:-9090}
models:
  gemini:
    provider: gemini
    model: gemini-2.0-flash
    api_key: ${TEST_GEMINI_KEY}
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port, "unset var falls back to default")
	assert.Equal(t, "secret-key", cfg.Models["gemini"].APIKey)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"bad port": `
server:
  port: 99999
`,
		"bad overflow": `
stream:
  overflow: drop_newest
`,
		"gemini without key": `
models:
  g:
    provider: gemini
    model: gemini-2.0-flash
`,
		"unknown provider": `
models:
  x:
    provider: llamacpp
`,
		"mcp without name": `
tools:
  mcp:
    - command: some-server
`,
	}

	for name, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestOAuthTokenExpiry(t *testing.T) {
	token := &OAuthToken{AccessToken: "x"}
	assert.False(t, token.Expired(), "zero expiry never expires")

	token.ExpiresAt = time.Now().Add(time.Hour)
	assert.False(t, token.Expired())

	// Inside the safety margin counts as expired.
	token.ExpiresAt = time.Now().Add(30 * time.Second)
	assert.True(t, token.Expired())

	token.ExpiresAt = time.Now().Add(-time.Hour)
	assert.True(t, token.Expired())
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Contains(t, cfg.Models, "mock")
}
