// Package server exposes a router of agents over WebSocket and a
// chat-completions-style HTTP endpoint. Approval requests flow out to
// the client as part of the message stream; decisions flow back in and
// resume the parked tool call.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/engine"
	"github.com/marcolabs/marco-go-sdk/router"
)

// ApprovalTTL is how long a pending approval survives before the sweep
// drops it.
const ApprovalTTL = 10 * time.Minute

// Config configures the server.
type Config struct {
	// Router is the composed multi-agent responder.
	Router *router.Router

	// ApplicationID scopes all memory written by this deployment.
	ApplicationID string

	// SweepInterval overrides how often expired approvals are dropped.
	SweepInterval time.Duration
}

// Server hosts the WebSocket and HTTP chat surfaces.
type Server struct {
	router *router.Router
	appID  string
	sweep  time.Duration

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string][]core.Message // thread ID -> history
}

// New creates a server for the given router.
func New(cfg Config) (*Server, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("server: Router is required")
	}
	if cfg.ApplicationID == "" {
		cfg.ApplicationID = "marco"
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Server{
		router: cfg.Router,
		appID:  cfg.ApplicationID,
		sweep:  cfg.SweepInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string][]core.Message),
	}, nil
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	return mux
}

// Run starts the server on addr and blocks. The approval sweep runs in
// the background for the server's lifetime.
func (s *Server) Run(addr string) error {
	go s.sweepLoop()

	log.Printf("[SERVER] Listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) sweepLoop() {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	for range ticker.C {
		if dropped := s.router.ExpireApprovals(ApprovalTTL); dropped > 0 {
			log.Printf("[SERVER] Expired %d stale approvals", dropped)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// clientMessage is an inbound WebSocket frame.
type clientMessage struct {
	Type       string `json:"type"` // "chat" or "approval"
	ThreadID   string `json:"thread_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Content    string `json:"content,omitempty"`
	ApprovalID string `json:"approval_id,omitempty"`
	Approved   bool   `json:"approved,omitempty"`
}

// serverMessage is an outbound WebSocket frame.
type serverMessage struct {
	Type     string                `json:"type"` // "chunk", "complete", "approval_required", "error"
	ThreadID string                `json:"thread_id,omitempty"`
	Content  string                `json:"content,omitempty"`
	Approval *core.ApprovalRequest `json:"approval,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// One writer per connection; engine stream callbacks and handler
	// responses share it.
	var writeMu sync.Mutex
	send := func(msg serverMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("[SERVER] Write failed: %v", err)
		}
	}

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SERVER] Connection closed: %v", err)
			}
			return
		}

		switch msg.Type {
		case "chat":
			s.handleChat(r.Context(), msg, send)
		case "approval":
			s.handleApproval(r.Context(), msg, send)
		default:
			send(serverMessage{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

func (s *Server) handleChat(ctx context.Context, msg clientMessage, send func(serverMessage)) {
	if msg.Content == "" {
		send(serverMessage{Type: "error", Error: "content is required"})
		return
	}
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = uuid.New().String()
	}

	history := s.history(threadID)
	out, err := s.router.Run(ctx, &router.Input{
		ThreadID:    threadID,
		UserMessage: msg.Content,
		Scope: core.Scope{
			ApplicationID: s.appID,
			UserID:        msg.UserID,
			ThreadID:      threadID,
		},
		History: history,
		StreamCallback: func(chunk string) {
			send(serverMessage{Type: "chunk", ThreadID: threadID, Content: chunk})
		},
	})
	if err != nil {
		send(serverMessage{Type: "error", ThreadID: threadID, Error: err.Error()})
		return
	}

	s.appendHistory(threadID, core.NewUserMessage(msg.Content))
	s.deliver(threadID, out, send)
}

func (s *Server) handleApproval(ctx context.Context, msg clientMessage, send func(serverMessage)) {
	if msg.ApprovalID == "" || msg.ThreadID == "" {
		send(serverMessage{Type: "error", Error: "approval_id and thread_id are required"})
		return
	}

	out, err := s.router.Resume(ctx, msg.ThreadID, core.ApprovalResponse{
		ApprovalID: msg.ApprovalID,
		Approved:   msg.Approved,
	})
	if err != nil {
		send(serverMessage{Type: "error", ThreadID: msg.ThreadID, Error: err.Error()})
		return
	}
	s.deliver(msg.ThreadID, out, send)
}

// deliver maps an engine output onto outbound frames and records the
// assistant reply in the thread history.
func (s *Server) deliver(threadID string, out *engine.Output, send func(serverMessage)) {
	switch out.Type {
	case engine.OutputApprovalNeeded:
		send(serverMessage{Type: "approval_required", ThreadID: threadID, Approval: out.Approval})
	case engine.OutputError:
		send(serverMessage{Type: "error", ThreadID: threadID, Error: out.Error.Error()})
	default:
		if out.Text != "" {
			s.appendHistory(threadID, core.NewAssistantMessage(out.Text))
		}
		send(serverMessage{Type: "complete", ThreadID: threadID, Content: out.Text})
	}
}

func (s *Server) history(threadID string) []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Message(nil), s.sessions[threadID]...)
}

func (s *Server) appendHistory(threadID string, msg core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[threadID] = append(s.sessions[threadID], msg)
}
