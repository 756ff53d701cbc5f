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

package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/apis"
	"github.com/agentgate/agentgate/pkg/runtime"
	"github.com/agentgate/agentgate/pkg/session"
	"github.com/agentgate/agentgate/pkg/streaming"
)

// ResponsesRequest is the inbound body of POST /v1/responses.
type ResponsesRequest struct {
	Model              string        `json:"model"`
	Input              ResponseInput `json:"input"`
	Stream             bool          `json:"stream,omitempty"`
	PreviousResponseID string        `json:"previous_response_id,omitempty"`
}

// ResponseInput accepts the string form and the message-array form of the
// responses input field.
type ResponseInput struct {
	Messages []ChatMessage
}

func (in *ResponseInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		in.Messages = []ChatMessage{{Role: "user", Content: MessageContent{Text: s}}}
		return nil
	}
	if err := json.Unmarshal(data, &in.Messages); err != nil {
		return fmt.Errorf("input must be a string or an array of messages: %w", err)
	}
	return nil
}

// Response is the non-streaming response body and the payload of
// response.completed stream events.
type Response struct {
	ID        string           `json:"id"`
	Object    string           `json:"object"`
	CreatedAt int64            `json:"created_at"`
	Model     string           `json:"model"`
	Status    string           `json:"status"`
	Output    []ResponseOutput `json:"output"`
}

type ResponseOutput struct {
	Type    string            `json:"type"`
	Role    string            `json:"role"`
	Content []ResponseContent `json:"content"`
}

type ResponseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ResponsesHandler serves the responses protocol. Sessions created here are
// persistent: they outlive their request, support continuation through
// previous_response_id, and stay registered until explicitly deleted.
type ResponsesHandler struct {
	factory  apis.SessionFactory
	registry *session.Registry
}

func NewResponsesHandler(factory apis.SessionFactory, registry *session.Registry) *ResponsesHandler {
	return &ResponsesHandler{factory: factory, registry: registry}
}

// Register mounts the responses routes on r.
func (h *ResponsesHandler) Register(r chi.Router) {
	r.Post("/responses", h.Create)
	r.Get("/responses/{id}", h.Watch)
	r.Delete("/responses/{id}", h.Cancel)
}

func (h *ResponsesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ResponsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apis.WriteError(w, apis.InvalidRequest("invalid request body: %s", err.Error()))
		return
	}
	if len(req.Input.Messages) == 0 {
		apis.WriteError(w, apis.InvalidRequest("input must not be empty"))
		return
	}

	ctx := r.Context()
	var sess *session.Session

	if req.PreviousResponseID != "" {
		// Continuation reuses the prior session and its conversation state.
		var err error
		sess, err = h.registry.Get(req.PreviousResponseID)
		if err != nil {
			apis.WriteError(w, apis.NotFound("response %q not found", req.PreviousResponseID))
			return
		}
	} else {
		if req.Model == "" {
			apis.WriteError(w, apis.InvalidRequest("model is required"))
			return
		}
		id := "resp_" + uuid.New().String()
		var err error
		sess, err = h.factory.NewSession(ctx, id, req.Model, false)
		if err != nil {
			if errors.Is(err, runtime.ErrUnknownModel) {
				apis.WriteError(w, apis.NotFound("model %q not found", req.Model))
				return
			}
			apis.WriteError(w, apis.Internal("failed to create session: %s", err.Error()))
			return
		}
		h.registry.Add(sess)
	}

	request, err := sess.HandleRequest(ctx, sess.ID(), toTurns(req.Input.Messages))
	if err != nil {
		apis.WriteError(w, apis.Internal("failed to submit request: %s", err.Error()))
		return
	}

	if req.Stream {
		h.stream(w, r, sess, request)
		return
	}
	h.sync(w, r, req.Model, sess, request)
}

// Watch attaches a read-only event stream to an existing response. Closing
// the watch never cancels the computation.
func (h *ResponsesHandler) Watch(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		apis.WriteError(w, apis.NotFound("response %q not found", chi.URLParam(r, "id")))
		return
	}
	h.stream(w, r, sess, sess.WatchRequest())
}

// Cancel stops the computation, waits for the cancellation to resolve, and
// removes the session from the registry.
func (h *ResponsesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.registry.Get(id)
	if err != nil {
		apis.WriteError(w, apis.NotFound("response %q not found", id))
		return
	}

	if err := sess.Cancel(r.Context(), id); err != nil {
		apis.WriteError(w, apis.Internal("failed to cancel response: %s", err.Error()))
		return
	}
	if err := h.registry.Remove(id); err != nil {
		slog.Warn("response already removed", "session", id)
	}

	apis.WriteJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"object":  "response",
		"deleted": true,
	})
}

func (h *ResponsesHandler) stream(w http.ResponseWriter, r *http.Request, sess *session.Session, request *session.Request) {
	formatter := NewResponsesFormatter()
	guarded := streaming.NewGuarded(streaming.New(request.Events, formatter, sess.ID()), request.Lifecycle)
	defer guarded.Close()

	sse, err := streaming.NewSSEWriter(w)
	if err != nil {
		apis.WriteError(w, apis.Internal("%s", err.Error()))
		return
	}

	if err := streaming.Pump(r.Context(), sse, guarded); err != nil {
		slog.Debug("responses stream ended early", "session", sess.ID(), "error", err)
		return
	}
	_ = sse.Send([]byte("[DONE]"))
}

func (h *ResponsesHandler) sync(w http.ResponseWriter, r *http.Request, modelName string, sess *session.Session, request *session.Request) {
	defer request.Lifecycle.Close()
	// Detach from the broadcaster on exit; the session may be persistent
	// and keep publishing long after this request is gone.
	defer request.Events.Close()

	var content string
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
		case *agent.Completed:
			content = e.Message
		case *agent.Failed:
			content = "Error: " + e.Message
		}
		if streaming.IsTerminal(ev) {
			break
		}
	}
	request.Lifecycle.Complete()

	apis.WriteJSON(w, http.StatusOK, &Response{
		ID:        sess.ID(),
		Object:    "response",
		CreatedAt: time.Now().Unix(),
		Model:     modelName,
		Status:    "completed",
		Output: []ResponseOutput{{
			Type: "message",
			Role: "assistant",
			Content: []ResponseContent{{
				Type: "output_text",
				Text: content,
			}},
		}},
	})
}
