// Package router composes specialist agents into one conversational
// responder. A directed graph of natural-language routing conditions
// decides which specialist handles each turn; handoffs are silent, the
// user only ever sees the final specialist's reply.
package router

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/marcolabs/marco-go-sdk/approval"
	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/engine"
	"github.com/marcolabs/marco-go-sdk/llm"
	"github.com/marcolabs/marco-go-sdk/memory"
	"github.com/marcolabs/marco-go-sdk/tools"
)

// DefaultMaxHops bounds silent handoffs within a single turn.
const DefaultMaxHops = 4

// Definition describes one specialist agent.
type Definition struct {
	// Name uniquely identifies the agent within the router.
	Name string

	// Description is the natural-language routing hint shown to the
	// decision model.
	Description string

	// Instructions is the agent's system prompt.
	Instructions string

	// Tools is the agent's tool registry. May be empty.
	Tools *tools.Registry

	// Memory builds the agent's memory pipeline for a scope. Optional.
	Memory func(scope core.Scope) (memory.Provider, error)

	// Model and MaxTokens override per-agent model settings.
	Model     string
	MaxTokens int64
}

// Edge routes control from one agent to another when the condition,
// read by the decision model, matches the user's request.
type Edge struct {
	From      string
	To        string
	Condition string
}

// Input is one routed conversation turn.
type Input struct {
	// ThreadID identifies the conversation; the active specialist is
	// tracked per thread.
	ThreadID string

	// UserMessage is the user's message for this turn.
	UserMessage string

	// Scope identifies the caller. AgentID is overwritten per specialist
	// so each agent keeps its own memory partition.
	Scope core.Scope

	// History contains previous messages in the conversation.
	History []core.Message

	// StreamCallback receives text deltas from the responding specialist.
	StreamCallback func(chunk string)
}

// session is the per-thread routing state.
type session struct {
	active    string
	engines   map[string]*engine.Engine
	approvals map[string]string // approval ID -> agent name
}

// Router is the composed multi-agent responder.
type Router struct {
	client  llm.ChatClient
	agents  map[string]*Definition
	edges   map[string][]Edge
	entry   string
	decider Decider
	maxHops int

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures the router.
type Option func(*Router)

// WithDecider overrides the routing decision implementation.
func WithDecider(d Decider) Option {
	return func(r *Router) { r.decider = d }
}

// WithMaxHops overrides the per-turn handoff limit.
func WithMaxHops(n int) Option {
	return func(r *Router) { r.maxHops = n }
}

// New builds a router with the given entry agent, specialists, and
// routing edges. Every edge endpoint must name a known agent.
func New(client llm.ChatClient, entry string, defs []*Definition, edges []Edge, opts ...Option) (*Router, error) {
	if client == nil {
		return nil, fmt.Errorf("router: client is required")
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("router: at least one agent is required")
	}

	agents := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("router: agent name is required")
		}
		if _, dup := agents[def.Name]; dup {
			return nil, fmt.Errorf("router: duplicate agent %s", def.Name)
		}
		agents[def.Name] = def
	}
	if _, ok := agents[entry]; !ok {
		return nil, fmt.Errorf("router: entry agent %s is not registered", entry)
	}

	edgeMap := make(map[string][]Edge)
	for _, e := range edges {
		if _, ok := agents[e.From]; !ok {
			return nil, fmt.Errorf("router: edge from unknown agent %s", e.From)
		}
		if _, ok := agents[e.To]; !ok {
			return nil, fmt.Errorf("router: edge to unknown agent %s", e.To)
		}
		edgeMap[e.From] = append(edgeMap[e.From], e)
	}

	r := &Router{
		client:   client,
		agents:   agents,
		edges:    edgeMap,
		entry:    entry,
		maxHops:  DefaultMaxHops,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.decider == nil {
		r.decider = NewModelDecider(client)
	}
	return r, nil
}

// Run routes one turn to the active specialist and returns its output.
//
// Routing happens before the specialist responds: the decision step
// never contributes user-visible text, so a handoff is indistinguishable
// from the same assistant continuing the conversation.
func (r *Router) Run(ctx context.Context, input *Input) (*engine.Output, error) {
	if input.ThreadID == "" {
		return nil, fmt.Errorf("router: thread ID is required")
	}

	sess := r.getSession(input.ThreadID)
	conversation := append(append([]core.Message(nil), input.History...), core.NewUserMessage(input.UserMessage))

	active := sess.active
	for hop := 0; hop < r.maxHops; hop++ {
		outgoing := r.edges[active]
		if len(outgoing) == 0 {
			break
		}
		next, err := r.decider.Decide(ctx, r.agents[active], outgoing, conversation)
		if err != nil {
			log.Printf("[ROUTER] Decision from %s failed, staying: %v", active, err)
			break
		}
		if next == "" || next == active {
			break
		}
		if _, ok := r.agents[next]; !ok {
			log.Printf("[ROUTER] Decider chose unknown agent %s, staying with %s", next, active)
			break
		}
		log.Printf("[ROUTER] Handing off %s -> %s (thread %s)", active, next, input.ThreadID)
		active = next
	}

	r.mu.Lock()
	sess.active = active
	r.mu.Unlock()

	def := r.agents[active]
	eng, err := r.engineFor(sess, def, input.Scope)
	if err != nil {
		return nil, err
	}

	out, err := eng.Run(ctx, &engine.Input{
		UserMessage:    input.UserMessage,
		Scope:          scopeFor(input.Scope, def.Name),
		History:        input.History,
		SystemPrompt:   def.Instructions,
		Model:          def.Model,
		MaxTokens:      def.MaxTokens,
		AgentName:      def.Name,
		StreamCallback: input.StreamCallback,
	})
	if err != nil {
		return nil, err
	}

	if out.Type == engine.OutputApprovalNeeded && out.Approval != nil {
		r.mu.Lock()
		sess.approvals[out.Approval.ApprovalID] = active
		r.mu.Unlock()
	}
	return out, nil
}

// Resume applies an approval decision to the specialist that parked the
// call and continues its run.
func (r *Router) Resume(ctx context.Context, threadID string, decision core.ApprovalResponse) (*engine.Output, error) {
	r.mu.Lock()
	sess, ok := r.sessions[threadID]
	var agentName string
	if ok {
		agentName, ok = sess.approvals[decision.ApprovalID]
		if ok {
			delete(sess.approvals, decision.ApprovalID)
		}
	}
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("router: no pending approval %s on thread %s", decision.ApprovalID, threadID)
	}

	eng := sess.engines[agentName]
	if eng == nil {
		return nil, fmt.Errorf("router: no engine for agent %s", agentName)
	}
	return eng.Resume(ctx, decision)
}

// ActiveAgent reports which specialist currently owns the thread.
func (r *Router) ActiveAgent(threadID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[threadID]; ok {
		return sess.active
	}
	return r.entry
}

// ExpireApprovals sweeps every session's pending approvals older than
// maxAge and returns the total dropped.
func (r *Router) ExpireApprovals(maxAge time.Duration) int {
	r.mu.Lock()
	engines := make([]*engine.Engine, 0)
	for _, sess := range r.sessions {
		for _, eng := range sess.engines {
			engines = append(engines, eng)
		}
	}
	r.mu.Unlock()

	dropped := 0
	for _, eng := range engines {
		dropped += eng.ExpireApprovals(maxAge)
	}
	return dropped
}

func (r *Router) getSession(threadID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[threadID]
	if !ok {
		sess = &session{
			active:    r.entry,
			engines:   make(map[string]*engine.Engine),
			approvals: make(map[string]string),
		}
		r.sessions[threadID] = sess
	}
	return sess
}

// engineFor lazily builds the per-thread engine for one specialist.
func (r *Router) engineFor(sess *session, def *Definition, scope core.Scope) (*engine.Engine, error) {
	r.mu.Lock()
	if eng, ok := sess.engines[def.Name]; ok {
		r.mu.Unlock()
		return eng, nil
	}
	r.mu.Unlock()

	var opts []engine.Option
	if def.Memory != nil {
		provider, err := def.Memory(scopeFor(scope, def.Name))
		if err != nil {
			return nil, fmt.Errorf("router: memory for %s: %w", def.Name, err)
		}
		opts = append(opts, engine.WithMemory(provider))
	}

	registry := def.Tools
	if registry == nil {
		registry = tools.NewRegistry()
	}
	eng := engine.NewEngine(r.client, registry, approval.NewGate(), opts...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := sess.engines[def.Name]; ok {
		return existing, nil
	}
	sess.engines[def.Name] = eng
	return eng, nil
}

func scopeFor(scope core.Scope, agentName string) core.Scope {
	scope.AgentID = agentName
	return scope
}
