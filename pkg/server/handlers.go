// Copyright 2025 Coverbridge, Inc.
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

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coverbridge/supportgw/pkg/admission"
)

// ChatRequest is the POST /v1/chat body.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// ChatResponse is the POST /v1/chat success body.
type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
	Agent          string `json:"agent,omitempty"`
	Warning        string `json:"warning,omitempty"`
	Escalated      bool   `json:"escalated,omitempty"`
	Category       string `json:"category,omitempty"`
}

// blockedResponse is the 429 body for denied requests.
type blockedResponse struct {
	Error        string `json:"error"`
	Blocked      bool   `json:"blocked"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	ip := clientIP(r)
	identity := req.UserID
	if identity == "" {
		identity = "ip:" + ip
	}

	result, err := s.guard.Check(r.Context(), &admission.Request{
		IdentityKey:    req.UserID,
		IP:             ip,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		if errors.Is(err, admission.ErrInvalidIdentity) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not identify caller"})
			return
		}
		slog.Error("Admission check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	if !result.Allowed() {
		blocked := blockedResponse{Error: result.Reason, Blocked: true}
		if result.RetryAfter != nil {
			blocked.RetryAfterMS = result.RetryAfter.Milliseconds()
		}
		writeJSON(w, http.StatusTooManyRequests, blocked)
		return
	}

	reply, err := s.agents.Handle(r.Context(), identity, req.ConversationID, req.Message)
	if err != nil {
		slog.Error("Chat handling failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ConversationID: reply.ConversationID,
		Response:       reply.Text,
		Agent:          reply.Agent,
		Warning:        result.Warning,
		Escalated:      reply.Escalated,
		Category:       reply.Category,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleAdmissionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.guard.Status(r.Context())
	if err != nil {
		slog.Error("Admission status failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	removed, err := s.guard.Unblock(r.Context(), key)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "identity is not blocked"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unblocked": key})
}

func (s *Server) handleUnblockAll(w http.ResponseWriter, r *http.Request) {
	count, err := s.guard.UnblockAll(r.Context())
	if err != nil {
		slog.Error("Unblock all failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unblocked_count": count})
}

func (s *Server) handleResetWarnings(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.guard.ResetWarnings(r.Context(), key); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset": key})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// clientIP strips the port from RemoteAddr. The RealIP middleware has
// already rewritten RemoteAddr from forwarding headers when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
