package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/engine"
	"github.com/marcolabs/marco-go-sdk/router"
)

// completionsRequest is the chat-completions-style request body. The
// thread is carried in the request so stateless clients can continue a
// conversation; a body with an approval decision resumes the thread's
// parked tool call instead of starting a new turn.
type completionsRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	User     string `json:"user,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	Stream   bool   `json:"stream,omitempty"`
	Approval *struct {
		ApprovalID string `json:"approval_id"`
		Approved   bool   `json:"approved"`
	} `json:"approval,omitempty"`
}

type completionsChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role     string                `json:"role"`
		Content  string                `json:"content"`
		Approval *core.ApprovalRequest `json:"approval,omitempty"`
	} `json:"message"`
}

type completionsResponse struct {
	ID       string              `json:"id"`
	Object   string              `json:"object"`
	Created  int64               `json:"created"`
	ThreadID string              `json:"thread_id"`
	Choices  []completionsChoice `json:"choices"`
	Usage    struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// handleChatCompletions maps a generic chat-completions request onto a
// routed turn. The last user message in the body is the turn's input;
// earlier messages are the history.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Stream {
		http.Error(w, "streaming is only available over the WebSocket endpoint", http.StatusBadRequest)
		return
	}

	if req.Approval != nil {
		if req.ThreadID == "" || req.Approval.ApprovalID == "" {
			http.Error(w, "approval requires thread_id and approval_id", http.StatusBadRequest)
			return
		}
		out, err := s.router.Resume(r.Context(), req.ThreadID, core.ApprovalResponse{
			ApprovalID: req.Approval.ApprovalID,
			Approved:   req.Approval.Approved,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.writeCompletion(w, req.ThreadID, out)
		return
	}

	var userMessage string
	var history []core.Message
	for i, m := range req.Messages {
		if i == len(req.Messages)-1 && m.Role == "user" {
			userMessage = m.Content
			break
		}
		switch core.Role(m.Role) {
		case core.RoleUser:
			history = append(history, core.NewUserMessage(m.Content))
		case core.RoleAssistant:
			history = append(history, core.NewAssistantMessage(m.Content))
		}
	}
	if userMessage == "" {
		http.Error(w, "last message must be a user message", http.StatusBadRequest)
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.New().String()
	}

	out, err := s.router.Run(r.Context(), &router.Input{
		ThreadID:    threadID,
		UserMessage: userMessage,
		Scope: core.Scope{
			ApplicationID: s.appID,
			UserID:        req.User,
			ThreadID:      threadID,
		},
		History: history,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeCompletion(w, threadID, out)
}

func (s *Server) writeCompletion(w http.ResponseWriter, threadID string, out *engine.Output) {
	if out.Type == engine.OutputError {
		http.Error(w, out.Error.Error(), http.StatusBadGateway)
		return
	}

	resp := completionsResponse{
		ID:       "chatcmpl-" + uuid.New().String(),
		Object:   "chat.completion",
		Created:  time.Now().Unix(),
		ThreadID: threadID,
	}
	resp.Usage.PromptTokens = out.TokensUsed.InputTokens
	resp.Usage.CompletionTokens = out.TokensUsed.OutputTokens

	choice := completionsChoice{FinishReason: "stop"}
	choice.Message.Role = string(core.RoleAssistant)
	choice.Message.Content = out.Text
	if out.Type == engine.OutputApprovalNeeded {
		choice.FinishReason = "approval_required"
		choice.Message.Approval = out.Approval
	}
	resp.Choices = append(resp.Choices, choice)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
