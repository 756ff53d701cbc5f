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

// Package server mounts the wire protocols on an HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/agentgate/agentgate/pkg/apis/openai"
	"github.com/agentgate/agentgate/pkg/apis/simple"
	"github.com/agentgate/agentgate/pkg/config"
	"github.com/agentgate/agentgate/pkg/observability"
	"github.com/agentgate/agentgate/pkg/runtime"
)

// Server is the HTTP front of the service.
type Server struct {
	cfg    config.ServerConfig
	rt     *runtime.Runtime
	obs    *observability.Manager
	server *http.Server
}

func New(cfg config.ServerConfig, rt *runtime.Runtime, obs *observability.Manager) *Server {
	s := &Server{cfg: cfg, rt: rt, obs: obs}
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.routes(),
		ReadTimeout: cfg.ReadTimeout,
		// No write timeout: SSE streams stay open as long as the
		// computation runs.
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Order: observability -> cors -> routes
	r.Use(observability.HTTPMiddleware(s.obs.Tracer("http"), s.obs.Metrics()))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", s.obs.Metrics().Handler())

	chat := openai.NewHandler(s.rt, s.rt.Tokens())
	responses := openai.NewResponsesHandler(s.rt, s.rt.Sessions())
	multimodal := simple.NewHandler(s.rt)

	r.Route("/v1", func(r chi.Router) {
		chat.Register(r)
		responses.Register(r)
		multimodal.Register(r)
	})
	return r
}

// Start serves until ctx is cancelled, then drains with the configured
// shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
