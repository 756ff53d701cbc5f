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
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentgate/agentgate/pkg/agent"
	"github.com/agentgate/agentgate/pkg/apis"
	"github.com/agentgate/agentgate/pkg/model"
	"github.com/agentgate/agentgate/pkg/runtime"
	"github.com/agentgate/agentgate/pkg/session"
	"github.com/agentgate/agentgate/pkg/streaming"
)

// Handler serves the chat completions protocol. Each request gets its own
// ephemeral session that lives no longer than the request.
type Handler struct {
	factory apis.SessionFactory
	tokens  *model.TokenCounter
}

func NewHandler(factory apis.SessionFactory, tokens *model.TokenCounter) *Handler {
	return &Handler{factory: factory, tokens: tokens}
}

// Register mounts the chat completions route on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/chat/completions", h.ChatCompletions)
}

func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apis.WriteError(w, apis.InvalidRequest("invalid request body: %s", err.Error()))
		return
	}
	if req.Model == "" {
		apis.WriteError(w, apis.InvalidRequest("model is required"))
		return
	}
	if len(req.Messages) == 0 {
		apis.WriteError(w, apis.InvalidRequest("messages must not be empty"))
		return
	}

	ctx := r.Context()
	sessionID := uuid.New().String()

	sess, err := h.factory.NewSession(ctx, sessionID, req.Model, true)
	if err != nil {
		if errors.Is(err, runtime.ErrUnknownModel) {
			apis.WriteError(w, apis.NotFound("model %q not found", req.Model))
			return
		}
		apis.WriteError(w, apis.Internal("failed to create session: %s", err.Error()))
		return
	}
	defer sess.Close()

	request, err := sess.HandleRequest(ctx, sessionID, toTurns(req.Messages))
	if err != nil {
		apis.WriteError(w, apis.Internal("failed to submit request: %s", err.Error()))
		return
	}

	if req.Stream {
		h.streamResponse(w, r, &req, sessionID, request)
		return
	}
	h.syncResponse(w, r, &req, sessionID, request)
}

func (h *Handler) streamResponse(w http.ResponseWriter, r *http.Request, req *ChatCompletionRequest, sessionID string, request *session.Request) {
	formatter := NewChatCompletionFormatter(req.Model)
	guarded := streaming.NewGuarded(streaming.New(request.Events, formatter, sessionID), request.Lifecycle)
	defer guarded.Close()

	sse, err := streaming.NewSSEWriter(w)
	if err != nil {
		apis.WriteError(w, apis.Internal("%s", err.Error()))
		return
	}

	if err := streaming.Pump(r.Context(), sse, guarded); err != nil {
		slog.Debug("chat completions stream ended early", "session", sessionID, "error", err)
		return
	}
	_ = sse.Send([]byte("[DONE]"))
}

// syncResponse drains the event stream to completion and answers with a
// single chat.completion body. Tool activity is logged, never surfaced in
// the body.
func (h *Handler) syncResponse(w http.ResponseWriter, r *http.Request, req *ChatCompletionRequest, sessionID string, request *session.Request) {
	defer request.Lifecycle.Close()
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
		case *agent.BrainResult:
			if e.Err == nil && e.Thought != nil && e.Thought.Content != "" {
				content = e.Thought.Content
			}
		case *agent.ToolCallStarted:
			slog.Info("tool call started", "session", sessionID, "tool", e.Call.ToolName)
		case *agent.ToolCallCompleted:
			slog.Info("tool call completed", "session", sessionID, "tool", e.Call.ToolName, "status", e.Result.Status)
		case *agent.Completed:
			if e.Message != "" {
				content = e.Message
			}
		case *agent.Failed:
			content = "Error: " + e.Message
		}

		if streaming.IsTerminal(ev) {
			break
		}
	}
	request.Lifecycle.Complete()

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += h.tokens.Count(req.Model, m.Content.Text)
	}
	completionTokens := h.tokens.Count(req.Model, content)

	apis.WriteJSON(w, http.StatusOK, &ChatCompletionResponse{
		ID:      "chatcmpl-" + sessionID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []CompletionChoice{{
			Index: 0,
			Message: CompletionMessage{
				Role:    "assistant",
				Content: content,
			},
			FinishReason: "stop",
		}},
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	})
}

func toTurns(messages []ChatMessage) []session.Turn {
	turns := make([]session.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, session.Turn{Role: m.Role, Content: m.Content.Text})
	}
	return turns
}
