// Package approval gates sensitive tool execution behind an explicit
// user decision. A gated tool call is parked as a pending request; the
// tool only runs once a matching approval arrives, and runs at most
// once no matter how many times the same approval is replayed.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcolabs/marco-go-sdk/core"
)

// ErrUnknownApproval is returned when a decision references no pending
// request: the ID was never issued, already resolved, or expired.
var ErrUnknownApproval = fmt.Errorf("no pending request for approval ID")

// Outcome is the result of submitting a tool call to the gate. Exactly
// one field is set: Completed when the tool ran (or was denied), or
// Approval when the call is parked awaiting a decision.
type Outcome struct {
	Completed *core.ToolResult
	Approval  *core.ApprovalRequest
}

type pendingCall struct {
	tool      core.Tool
	params    *core.ToolParams
	arguments map[string]interface{}
	createdAt time.Time
}

// Gate intercepts tool calls and parks the sensitive ones.
type Gate struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
	now     func() time.Time
}

// NewGate creates an empty approval gate.
func NewGate() *Gate {
	return &Gate{
		pending: make(map[string]*pendingCall),
		now:     time.Now,
	}
}

// Submit runs the tool immediately when it needs no approval, otherwise
// parks the call and returns the request to surface to the user.
func (g *Gate) Submit(ctx context.Context, tool core.Tool, params *core.ToolParams) (*Outcome, error) {
	if !tool.RequiresApproval() {
		result, err := tool.Execute(ctx, params)
		if err != nil {
			return nil, err
		}
		return &Outcome{Completed: result}, nil
	}

	var arguments map[string]interface{}
	if len(params.Input) > 0 {
		if err := json.Unmarshal(params.Input, &arguments); err != nil {
			return nil, fmt.Errorf("failed to decode arguments for %s: %w", tool.Name(), err)
		}
	}

	req := &core.ApprovalRequest{
		ApprovalID:        uuid.New().String(),
		FunctionName:      tool.Name(),
		FunctionArguments: arguments,
		Message:           fmt.Sprintf("Approval required to run %s", tool.Name()),
	}

	g.mu.Lock()
	g.pending[req.ApprovalID] = &pendingCall{
		tool:      tool,
		params:    params,
		arguments: arguments,
		createdAt: g.now(),
	}
	g.mu.Unlock()

	log.Printf("[APPROVAL] Parked %s as %s", tool.Name(), req.ApprovalID)
	return &Outcome{Approval: req}, nil
}

// Resolve applies a user decision to a pending request. An approved
// call executes the parked tool exactly once; a denied call returns a
// failed result without executing. An unknown or already-resolved ID
// returns ErrUnknownApproval and leaves other pending requests intact.
func (g *Gate) Resolve(ctx context.Context, resp core.ApprovalResponse) (*core.ToolResult, error) {
	g.mu.Lock()
	call, ok := g.pending[resp.ApprovalID]
	if ok {
		delete(g.pending, resp.ApprovalID)
	}
	g.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApproval, resp.ApprovalID)
	}

	if !resp.Approved {
		log.Printf("[APPROVAL] Denied %s (%s)", call.tool.Name(), resp.ApprovalID)
		return &core.ToolResult{
			Success: false,
			Error:   fmt.Sprintf("user denied approval for %s", call.tool.Name()),
		}, nil
	}

	log.Printf("[APPROVAL] Approved %s (%s), executing", call.tool.Name(), resp.ApprovalID)
	return call.tool.Execute(ctx, call.params)
}

// Pending returns the requests currently awaiting a decision.
func (g *Gate) Pending() []core.ApprovalRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]core.ApprovalRequest, 0, len(g.pending))
	for id, call := range g.pending {
		out = append(out, core.ApprovalRequest{
			ApprovalID:        id,
			FunctionName:      call.tool.Name(),
			FunctionArguments: call.arguments,
		})
	}
	return out
}

// Expire drops pending requests older than maxAge and returns how many
// were dropped. Expired IDs resolve as unknown afterwards.
func (g *Gate) Expire(maxAge time.Duration) int {
	cutoff := g.now().Add(-maxAge)

	g.mu.Lock()
	defer g.mu.Unlock()

	dropped := 0
	for id, call := range g.pending {
		if call.createdAt.Before(cutoff) {
			delete(g.pending, id)
			dropped++
			log.Printf("[APPROVAL] Expired %s (%s)", call.tool.Name(), id)
		}
	}
	return dropped
}
