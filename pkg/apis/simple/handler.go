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

package simple

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/apis"
	"github.com/agentgate/agentgate/pkg/runtime"
	"github.com/agentgate/agentgate/pkg/session"
	"github.com/agentgate/agentgate/pkg/streaming"
)

// Handler serves the multimodal query protocol over ephemeral sessions.
type Handler struct {
	factory apis.SessionFactory
}

func NewHandler(factory apis.SessionFactory) *Handler {
	return &Handler{factory: factory}
}

// Register mounts the multimodal route on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/multimodal", h.Query)
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var query MultiModalQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		apis.WriteError(w, apis.InvalidRequest("invalid request body: %s", err.Error()))
		return
	}
	if query.Model == "" {
		apis.WriteError(w, apis.InvalidRequest("model is required"))
		return
	}
	if len(query.Messages) == 0 {
		apis.WriteError(w, apis.InvalidRequest("messages must not be empty"))
		return
	}

	ctx := r.Context()
	sessionID := uuid.New().String()

	sess, err := h.factory.NewSession(ctx, sessionID, query.Model, true)
	if err != nil {
		if errors.Is(err, runtime.ErrUnknownModel) {
			apis.WriteError(w, apis.NotFound("model %q not found", query.Model))
			return
		}
		apis.WriteError(w, apis.Internal("failed to create session: %s", err.Error()))
		return
	}
	defer sess.Close()

	// Submissions are text only; attached files are accepted on the wire
	// but not forwarded. Assistant and previous-call entries are context
	// the client replays, never new input.
	turns := make([]session.Turn, 0, len(query.Messages))
	for _, m := range query.Messages {
		switch {
		case m.User != nil:
			if len(m.User.AttachedFiles) > 0 {
				slog.Debug("ignoring attached files", "session", sessionID, "count", len(m.User.AttachedFiles))
			}
			turns = append(turns, session.Turn{Role: agent.RoleUser, Content: m.User.Message})
		case m.Assistant != nil:
			turns = append(turns, session.Turn{Role: agent.RoleAssistant, Content: m.Assistant.Assistant})
		}
	}

	request, err := sess.HandleRequest(ctx, sessionID, turns)
	if err != nil {
		apis.WriteError(w, apis.Internal("failed to submit request: %s", err.Error()))
		return
	}

	if query.Stream {
		h.stream(w, r, query.Model, sessionID, request)
		return
	}
	h.sync(w, r, query.Model, sessionID, request)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, modelName, sessionID string, request *session.Request) {
	guarded := streaming.NewGuarded(streaming.New(request.Events, NewFormatter(modelName), sessionID), request.Lifecycle)
	defer guarded.Close()

	sse, err := streaming.NewSSEWriter(w)
	if err != nil {
		apis.WriteError(w, apis.Internal("%s", err.Error()))
		return
	}

	if err := streaming.Pump(r.Context(), sse, guarded); err != nil {
		slog.Debug("multimodal stream ended early", "session", sessionID, "error", err)
	}
}

// sync drains the event stream to completion and answers with one body:
// every finished tool call as a replayed entry, then the final assistant
// message.
func (h *Handler) sync(w http.ResponseWriter, r *http.Request, modelName, sessionID string, request *session.Request) {
	defer request.Lifecycle.Close()
	defer request.Events.Close()

	resp := MultiModalResponse{ID: sessionID, Model: modelName}
	var final string
	for {
		ev, err := request.Events.Next(r.Context())
		if err != nil {
			if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
				return
			}
			apis.WriteError(w, apis.Internal("event stream ended before completion: %s", err.Error()))
			return
		}

		switch e := ev.(type) {
		case *agent.BrainResult:
			if e.Err == nil && e.Thought != nil && e.Thought.Content != "" {
				final = e.Thought.Content
			}
		case *agent.ToolCallCompleted:
			resp.Result = append(resp.Result, ResponseMessage{Previous: &PreviousCall{
				Call:   wireCall(e.Call),
				Result: wireResult(e.Result),
			}})
		case *agent.Completed:
			if e.Message != "" {
				final = e.Message
			}
		case *agent.Failed:
			final = "Error: " + e.Message
		}

		if streaming.IsTerminal(ev) {
			break
		}
	}
	request.Lifecycle.Complete()

	resp.Result = append(resp.Result, ResponseMessage{Assistant: &AssistantMessage{Assistant: final}})
	apis.WriteJSON(w, http.StatusOK, &resp)
}
