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

// Package config defines the YAML configuration surface.
package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server        ServerConfig           `yaml:"server"`
	Logging       LoggingConfig          `yaml:"logging"`
	Stream        StreamConfig           `yaml:"stream"`
	Models        map[string]ModelConfig `yaml:"models"`
	Tools         ToolsConfig            `yaml:"tools"`
	Observability ObservabilityConfig    `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "simple" or "verbose"
	File   string `yaml:"file"`
}

// StreamConfig tunes per-subscriber event buffering.
type StreamConfig struct {
	Buffer   int    `yaml:"buffer"`
	Overflow string `yaml:"overflow"` // "drop_oldest" or "close"
}

type ModelConfig struct {
	Provider      string `yaml:"provider"` // "gemini" or "mock"
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	System        string `yaml:"system"`
	MaxIterations int    `yaml:"max_iterations"`
}

type ToolsConfig struct {
	Deny []string          `yaml:"deny"`
	MCP  []MCPServerConfig `yaml:"mcp"`
}

type MCPServerConfig struct {
	Name      string      `yaml:"name"`
	Transport string      `yaml:"transport"`
	Command   string      `yaml:"command"`
	Args      []string    `yaml:"args"`
	Env       []string    `yaml:"env"`
	URL       string      `yaml:"url"`
	OAuth     *OAuthToken `yaml:"oauth"`
}

// OAuthToken is a bearer token for HTTP MCP transports.
type OAuthToken struct {
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	ExpiresAt    time.Time `yaml:"expires_at"`
}

// expiryMargin keeps a token from being used right at its expiry edge.
const expiryMargin = 60 * time.Second

// Expired reports whether the token is unusable. A zero ExpiresAt means the
// token never expires.
func (t *OAuthToken) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(t.ExpiresAt.Add(-expiryMargin))
}

type ObservabilityConfig struct {
	Enabled     bool          `yaml:"enabled"`
	ServiceName string        `yaml:"service_name"`
	Traces      TracesConfig  `yaml:"traces"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

type TracesConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "otlp" or "stdout"
	Endpoint string `yaml:"endpoint"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SetDefaults fills in every unset field.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "simple"
	}
	if c.Stream.Buffer == 0 {
		c.Stream.Buffer = 256
	}
	if c.Stream.Overflow == "" {
		c.Stream.Overflow = "drop_oldest"
	}
	if c.Models == nil {
		c.Models = map[string]ModelConfig{
			"mock": {Provider: "mock"},
		}
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "agentgate"
	}
	if c.Observability.Traces.Exporter == "" {
		c.Observability.Traces.Exporter = "otlp"
	}
	if c.Observability.Traces.Endpoint == "" {
		c.Observability.Traces.Endpoint = "localhost:4317"
	}
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	if c.Stream.Buffer < 1 {
		return fmt.Errorf("stream: buffer must be positive, got %d", c.Stream.Buffer)
	}
	switch c.Stream.Overflow {
	case "drop_oldest", "close":
	default:
		return fmt.Errorf("stream: unknown overflow policy %q", c.Stream.Overflow)
	}
	for name, m := range c.Models {
		switch m.Provider {
		case "gemini":
			if m.APIKey == "" {
				return fmt.Errorf("models: %s: gemini requires an api_key", name)
			}
			if m.Model == "" {
				return fmt.Errorf("models: %s: gemini requires a model name", name)
			}
		case "mock":
		default:
			return fmt.Errorf("models: %s: unknown provider %q", name, m.Provider)
		}
	}
	for _, s := range c.Tools.MCP {
		if s.Name == "" {
			return fmt.Errorf("tools: mcp server without a name")
		}
		if s.OAuth != nil && s.OAuth.Expired() {
			return fmt.Errorf("tools: mcp %s: oauth token expired", s.Name)
		}
	}
	return nil
}
