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

package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the service's instruments. The zero value is a valid no-op
// recorder, used when metrics are disabled.
type Metrics struct {
	httpRequests     metric.Int64Counter
	httpDuration     metric.Float64Histogram
	activeSessions   metric.Int64UpDownCounter
	streamsCompleted metric.Int64Counter
	streamsAbandoned metric.Int64Counter
	tokensUsed       metric.Int64Counter
}

// InitMetrics builds the instruments on a Prometheus-backed meter provider.
func InitMetrics(enabled bool) (*Metrics, error) {
	if !enabled {
		return &Metrics{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("agentgate")

	m := &Metrics{}
	if m.httpRequests, err = meter.Int64Counter(
		"agentgate_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.httpDuration, err = meter.Float64Histogram(
		"agentgate_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.activeSessions, err = meter.Int64UpDownCounter(
		"agentgate_active_sessions",
		metric.WithDescription("Sessions currently running"),
	); err != nil {
		return nil, err
	}
	if m.streamsCompleted, err = meter.Int64Counter(
		"agentgate_streams_completed_total",
		metric.WithDescription("Streams that reached their terminal event"),
	); err != nil {
		return nil, err
	}
	if m.streamsAbandoned, err = meter.Int64Counter(
		"agentgate_streams_abandoned_total",
		metric.WithDescription("Streams torn down before their terminal event"),
	); err != nil {
		return nil, err
	}
	if m.tokensUsed, err = meter.Int64Counter(
		"agentgate_tokens_used_total",
		metric.WithDescription("Tokens reported by model backends"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler serves the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	ctx := context.Background()
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) SessionStarted() {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(context.Background(), 1)
}

func (m *Metrics) SessionEnded() {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(context.Background(), -1)
}

func (m *Metrics) StreamCompleted() {
	if m == nil || m.streamsCompleted == nil {
		return
	}
	m.streamsCompleted.Add(context.Background(), 1)
}

func (m *Metrics) StreamAbandoned() {
	if m == nil || m.streamsAbandoned == nil {
		return
	}
	m.streamsAbandoned.Add(context.Background(), 1)
}

func (m *Metrics) RecordTokens(model string, prompt, completion int) {
	if m == nil || m.tokensUsed == nil {
		return
	}
	ctx := context.Background()
	m.tokensUsed.Add(ctx, int64(prompt), metric.WithAttributes(
		attribute.String("model", model), attribute.String("kind", "prompt")))
	m.tokensUsed.Add(ctx, int64(completion), metric.WithAttributes(
		attribute.String("model", model), attribute.String("kind", "completion")))
}

var globalMetrics atomic.Pointer[Metrics]

// SetGlobal installs the process-wide metrics recorder.
func SetGlobal(m *Metrics) { globalMetrics.Store(m) }

// Global returns the process-wide recorder; never nil.
func Global() *Metrics {
	if m := globalMetrics.Load(); m != nil {
		return m
	}
	return &Metrics{}
}
