// Package engine runs the agent loop: memory enrichment, the model
// call, tool dispatch through the approval gate, and post-turn memory
// capture.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/marcolabs/marco-go-sdk/approval"
	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/llm"
	"github.com/marcolabs/marco-go-sdk/memory"
	"github.com/marcolabs/marco-go-sdk/tools"
)

// DefaultMaxTurns bounds model round-trips within one Run.
const DefaultMaxTurns = 20

// Engine executes agent runs against a chat model.
type Engine struct {
	client   llm.ChatClient
	registry *tools.Registry
	gate     *approval.Gate
	memory   memory.Provider // optional
	maxTurns int

	mu      sync.Mutex
	pending map[string]*pendingTurn
}

// pendingTurn is the conversation state parked while an approval is
// outstanding, keyed by approval ID. Every tool_use block in the last
// assistant message must eventually be answered, so the results already
// computed for sibling calls and the calls not yet dispatched are both
// carried across the park.
type pendingTurn struct {
	input     *Input
	conv      []llm.ChatMessage
	system    string
	toolUseID string
	toolName  string
	turn      *memory.Turn
	response  []core.Message
	usage     core.TokenUsage
	text      string
	toolsUsed []core.ToolExecution
	results   []llm.ContentBlock
	remaining []llm.ContentBlock
	turnCount int
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory attaches a memory provider (typically a Pipeline).
func WithMemory(p memory.Provider) Option {
	return func(e *Engine) { e.memory = p }
}

// WithMaxTurns overrides the model round-trip limit.
func WithMaxTurns(n int) Option {
	return func(e *Engine) { e.maxTurns = n }
}

// NewEngine creates an engine over the given client and tool registry.
// Sensitive tools are routed through gate; pass a fresh gate per engine.
func NewEngine(client llm.ChatClient, registry *tools.Registry, gate *approval.Gate, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		registry: registry,
		gate:     gate,
		maxTurns: DefaultMaxTurns,
		pending:  make(map[string]*pendingTurn),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *tools.Registry { return e.registry }

// Input is one agent run request.
type Input struct {
	// UserMessage is the user's message to process.
	UserMessage string

	// Scope identifies the caller for memory and tool execution.
	Scope core.Scope

	// History contains previous messages in the conversation.
	History []core.Message

	// SystemPrompt is the agent's base instructions.
	SystemPrompt string

	// Model is the model to use. Defaults to llm.DefaultModel.
	Model string

	// MaxTokens is the maximum response tokens. Defaults to 4096.
	MaxTokens int64

	// AgentName identifies the agent in logs.
	AgentName string

	// StreamCallback receives text deltas as the model produces them.
	StreamCallback func(chunk string)
}

// OutputType indicates the kind of output from an agent run.
type OutputType int

const (
	// OutputComplete indicates the agent finished successfully.
	OutputComplete OutputType = iota

	// OutputApprovalNeeded indicates a sensitive tool call is parked
	// awaiting a user decision.
	OutputApprovalNeeded

	// OutputError indicates an error occurred.
	OutputError
)

// Output is the result of an agent run.
type Output struct {
	Type OutputType

	// Text is the agent's final text response.
	Text string

	// Approval is set when Type is OutputApprovalNeeded.
	Approval *core.ApprovalRequest

	// ToolsUsed records the tools invoked during this run.
	ToolsUsed []core.ToolExecution

	// TokensUsed tracks model token consumption for this run.
	TokensUsed core.TokenUsage

	// Error is set when Type is OutputError.
	Error error
}

// Run executes the agent loop until completion or an approval is needed.
func (e *Engine) Run(ctx context.Context, input *Input) (*Output, error) {
	turn := &memory.Turn{Messages: append(append([]core.Message(nil), input.History...), core.NewUserMessage(input.UserMessage))}

	system := input.SystemPrompt
	conv := toChatMessages(input.History)

	if e.memory != nil {
		memCtx, err := e.memory.PreTurn(ctx, turn)
		if err != nil {
			log.Printf("[ENGINE] Memory enrichment failed: %v", err)
		} else if !memCtx.Empty() {
			if memCtx.Instructions != "" {
				system += "\n\n" + memCtx.Instructions
			}
			for _, m := range memCtx.Messages {
				conv = append(conv, llm.TextMessage(m.Role, m.Content))
			}
		}
	}

	if input.UserMessage != "" {
		conv = append(conv, llm.TextMessage(core.RoleUser, input.UserMessage))
	}

	state := &pendingTurn{
		input:  input,
		conv:   conv,
		system: system,
		turn:   turn,
	}
	return e.loop(ctx, state)
}

// Resume applies a user's approval decision and continues the parked
// run. Unknown approval IDs return an error without disturbing other
// pending runs.
func (e *Engine) Resume(ctx context.Context, decision core.ApprovalResponse) (*Output, error) {
	e.mu.Lock()
	state, ok := e.pending[decision.ApprovalID]
	if ok {
		delete(e.pending, decision.ApprovalID)
	}
	e.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no pending run for approval %s", decision.ApprovalID)
	}

	result, err := e.gate.Resolve(ctx, decision)
	if err != nil {
		// Re-park the run so a retried decision can still land.
		e.mu.Lock()
		e.pending[decision.ApprovalID] = state
		e.mu.Unlock()
		return nil, err
	}

	state.results = append(state.results, toolResultBlock(state.toolUseID, result))
	log.Printf("[ENGINE] Resuming %s after approval %s", state.toolName, decision.ApprovalID)
	return e.loop(ctx, state)
}

// loop drives model round-trips until the model stops calling tools.
func (e *Engine) loop(ctx context.Context, state *pendingTurn) (*Output, error) {
	input := state.input

	model := input.Model
	if model == "" {
		model = llm.DefaultModel
	}
	maxTokens := input.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	for {
		if ctx.Err() != nil {
			return e.errorOutput(ctx, state, fmt.Errorf("run cancelled: %w", ctx.Err()))
		}

		// Finish tool dispatch interrupted by an approval park before
		// calling the model again: every outstanding tool_use block
		// needs a matching tool_result.
		if len(state.results) > 0 || len(state.remaining) > 0 {
			if parked := e.dispatch(ctx, state); parked != nil {
				return parked, nil
			}
			state.conv = append(state.conv, llm.ToolResultMessage(state.results...))
			state.results = nil
		}

		if state.turnCount >= e.maxTurns {
			return e.errorOutput(ctx, state, fmt.Errorf("exceeded maximum turns (%d)", e.maxTurns))
		}
		state.turnCount++

		req := &llm.Request{
			Model:     model,
			MaxTokens: maxTokens,
			System:    state.system,
			Messages:  state.conv,
			Tools:     e.registry.Specs(),
		}

		var resp *llm.Response
		var err error
		if input.StreamCallback != nil {
			resp, err = e.client.GenerateStream(ctx, req, input.StreamCallback)
		} else {
			resp, err = e.client.Generate(ctx, req)
		}
		if err != nil {
			return e.errorOutput(ctx, state, fmt.Errorf("model call failed: %w", err))
		}

		state.usage.InputTokens += resp.Usage.InputTokens
		state.usage.OutputTokens += resp.Usage.OutputTokens

		if t := resp.Text(); t != "" {
			state.text = t
			state.response = append(state.response, core.NewAssistantMessage(t))
		}

		uses := resp.ToolUses()
		if len(uses) == 0 {
			return e.completeOutput(ctx, state)
		}

		state.conv = append(state.conv, llm.ChatMessage{Role: core.RoleAssistant, Blocks: resp.Blocks})
		state.remaining = uses

		if parked := e.dispatch(ctx, state); parked != nil {
			return parked, nil
		}
		state.conv = append(state.conv, llm.ToolResultMessage(state.results...))
		state.results = nil
	}
}

// dispatch runs state.remaining through the approval gate, accumulating
// tool results in state.results. When a tool parks for approval the run
// is stashed and the approval output returned; the sibling results
// computed so far and the calls not yet reached stay on the state so
// Resume can answer every tool_use block.
func (e *Engine) dispatch(ctx context.Context, state *pendingTurn) *Output {
	for len(state.remaining) > 0 {
		use := state.remaining[0]
		state.remaining = state.remaining[1:]

		tool := e.registry.Get(use.Name)
		if tool == nil {
			state.results = append(state.results, llm.ToolResultBlock(use.ID, fmt.Sprintf("unknown tool: %s", use.Name), true))
			continue
		}

		params := &core.ToolParams{
			Scope:     state.input.Scope,
			Input:     use.Input,
			RequestID: use.ID,
		}

		start := time.Now()
		outcome, err := e.gate.Submit(ctx, tool, params)
		if err != nil {
			state.results = append(state.results, llm.ToolResultBlock(use.ID, err.Error(), true))
			state.toolsUsed = append(state.toolsUsed, core.ToolExecution{
				Tool:       use.Name,
				Input:      use.Input,
				Error:      err.Error(),
				DurationMs: time.Since(start).Milliseconds(),
			})
			continue
		}

		if outcome.Approval != nil {
			state.toolUseID = use.ID
			state.toolName = use.Name
			e.mu.Lock()
			e.pending[outcome.Approval.ApprovalID] = state
			e.mu.Unlock()

			log.Printf("[ENGINE] %s awaiting approval %s", use.Name, outcome.Approval.ApprovalID)
			return &Output{
				Type:       OutputApprovalNeeded,
				Text:       state.text,
				Approval:   outcome.Approval,
				ToolsUsed:  state.toolsUsed,
				TokensUsed: state.usage,
			}
		}

		state.results = append(state.results, toolResultBlock(use.ID, outcome.Completed))
		exec := core.ToolExecution{
			Tool:       use.Name,
			Input:      use.Input,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if outcome.Completed != nil {
			if outcome.Completed.Success {
				exec.Result = outcome.Completed.Data
			} else {
				exec.Error = outcome.Completed.Error
			}
		}
		state.toolsUsed = append(state.toolsUsed, exec)
	}
	return nil
}

func (e *Engine) completeOutput(ctx context.Context, state *pendingTurn) (*Output, error) {
	if e.memory != nil {
		state.turn.Response = state.response
		if err := e.memory.PostTurn(ctx, state.turn); err != nil {
			log.Printf("[ENGINE] Memory capture failed: %v", err)
		}
	}
	return &Output{
		Type:       OutputComplete,
		Text:       state.text,
		ToolsUsed:  state.toolsUsed,
		TokensUsed: state.usage,
	}, nil
}

func (e *Engine) errorOutput(ctx context.Context, state *pendingTurn, err error) (*Output, error) {
	if e.memory != nil {
		state.turn.Response = state.response
		state.turn.Err = err
		if perr := e.memory.PostTurn(ctx, state.turn); perr != nil {
			log.Printf("[ENGINE] Memory capture failed: %v", perr)
		}
	}
	return &Output{
		Type:       OutputError,
		Error:      err,
		TokensUsed: state.usage,
	}, nil
}

// ExpireApprovals drops approvals and their parked runs older than
// maxAge. Intended to be called periodically by the hosting server.
func (e *Engine) ExpireApprovals(maxAge time.Duration) int {
	dropped := e.gate.Expire(maxAge)
	if dropped == 0 {
		return 0
	}

	// Parked runs whose approval expired can never resume.
	pendingIDs := make(map[string]bool)
	for _, req := range e.gate.Pending() {
		pendingIDs[req.ApprovalID] = true
	}
	e.mu.Lock()
	for id := range e.pending {
		if !pendingIDs[id] {
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()
	return dropped
}

func toChatMessages(history []core.Message) []llm.ChatMessage {
	conv := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case core.RoleUser, core.RoleAssistant:
			conv = append(conv, llm.TextMessage(m.Role, m.Content))
		}
	}
	return conv
}

func toolResultBlock(toolUseID string, result *core.ToolResult) llm.ContentBlock {
	if result == nil {
		return llm.ToolResultBlock(toolUseID, "no result returned", true)
	}
	if !result.Success {
		return llm.ToolResultBlock(toolUseID, result.Error, true)
	}
	payload, err := json.Marshal(result.Data)
	if err != nil {
		return llm.ToolResultBlock(toolUseID, fmt.Sprintf("failed to encode result: %v", err), true)
	}
	return llm.ToolResultBlock(toolUseID, string(payload), false)
}
