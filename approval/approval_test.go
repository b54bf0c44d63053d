package approval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marcolabs/marco-go-sdk/core"
)

// countingTool tracks how many times it was executed.
type countingTool struct {
	name          string
	needsApproval bool
	executions    int
}

func (c *countingTool) Name() string                         { return c.name }
func (c *countingTool) Description() string                  { return "test tool" }
func (c *countingTool) InputSchema() map[string]interface{}  { return map[string]interface{}{} }
func (c *countingTool) RequiresApproval() bool               { return c.needsApproval }
func (c *countingTool) Execute(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	c.executions++
	return &core.ToolResult{Success: true, Data: "done"}, nil
}

func TestSubmitRunsUngatedToolInline(t *testing.T) {
	gate := NewGate()
	tool := &countingTool{name: "search_flights"}

	outcome, err := gate.Submit(context.Background(), tool, &core.ToolParams{})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Completed == nil || outcome.Approval != nil {
		t.Fatalf("expected completed outcome, got %+v", outcome)
	}
	if tool.executions != 1 {
		t.Errorf("tool executed %d times", tool.executions)
	}
	if len(gate.Pending()) != 0 {
		t.Errorf("ungated call left pending state")
	}
}

func TestSubmitParksGatedTool(t *testing.T) {
	gate := NewGate()
	tool := &countingTool{name: "book_flight", needsApproval: true}
	params := &core.ToolParams{Input: json.RawMessage(`{"flight_number": "QF123"}`)}

	outcome, err := gate.Submit(context.Background(), tool, params)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Approval == nil || outcome.Completed != nil {
		t.Fatalf("expected parked outcome, got %+v", outcome)
	}
	if outcome.Approval.FunctionName != "book_flight" {
		t.Errorf("FunctionName = %q", outcome.Approval.FunctionName)
	}
	if outcome.Approval.FunctionArguments["flight_number"] != "QF123" {
		t.Errorf("FunctionArguments = %v", outcome.Approval.FunctionArguments)
	}
	if tool.executions != 0 {
		t.Errorf("gated tool executed before approval")
	}
	if len(gate.Pending()) != 1 {
		t.Errorf("Pending() = %d requests", len(gate.Pending()))
	}
}

func TestResolveApprovedExecutesOnce(t *testing.T) {
	gate := NewGate()
	tool := &countingTool{name: "book_flight", needsApproval: true}

	outcome, err := gate.Submit(context.Background(), tool, &core.ToolParams{})
	if err != nil {
		t.Fatal(err)
	}
	id := outcome.Approval.ApprovalID

	result, err := gate.Resolve(context.Background(), core.ApprovalResponse{ApprovalID: id, Approved: true})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Errorf("approved call failed: %+v", result)
	}
	if tool.executions != 1 {
		t.Errorf("tool executed %d times", tool.executions)
	}

	// Replaying the same approval must not execute again.
	if _, err := gate.Resolve(context.Background(), core.ApprovalResponse{ApprovalID: id, Approved: true}); !errors.Is(err, ErrUnknownApproval) {
		t.Errorf("replay returned %v, want ErrUnknownApproval", err)
	}
	if tool.executions != 1 {
		t.Errorf("replay executed the tool again: %d", tool.executions)
	}
}

func TestResolveDeniedNeverExecutes(t *testing.T) {
	gate := NewGate()
	tool := &countingTool{name: "book_flight", needsApproval: true}

	outcome, err := gate.Submit(context.Background(), tool, &core.ToolParams{})
	if err != nil {
		t.Fatal(err)
	}

	result, err := gate.Resolve(context.Background(), core.ApprovalResponse{
		ApprovalID: outcome.Approval.ApprovalID,
		Approved:   false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("denied call reported success")
	}
	if result.Error == "" {
		t.Error("denied call carries no error text")
	}
	if tool.executions != 0 {
		t.Errorf("denied tool executed %d times", tool.executions)
	}
}

func TestResolveUnknownIDLeavesPendingIntact(t *testing.T) {
	gate := NewGate()
	tool := &countingTool{name: "book_flight", needsApproval: true}

	if _, err := gate.Submit(context.Background(), tool, &core.ToolParams{}); err != nil {
		t.Fatal(err)
	}

	_, err := gate.Resolve(context.Background(), core.ApprovalResponse{ApprovalID: "not-a-real-id", Approved: true})
	if !errors.Is(err, ErrUnknownApproval) {
		t.Fatalf("unknown ID returned %v", err)
	}
	if len(gate.Pending()) != 1 {
		t.Errorf("unknown ID disturbed pending requests: %d left", len(gate.Pending()))
	}
	if tool.executions != 0 {
		t.Errorf("tool executed %d times", tool.executions)
	}
}

func TestExpireDropsOldRequests(t *testing.T) {
	gate := NewGate()
	current := time.Now()
	gate.now = func() time.Time { return current }

	tool := &countingTool{name: "book_flight", needsApproval: true}
	outcome, err := gate.Submit(context.Background(), tool, &core.ToolParams{})
	if err != nil {
		t.Fatal(err)
	}

	current = current.Add(11 * time.Minute)
	if dropped := gate.Expire(10 * time.Minute); dropped != 1 {
		t.Fatalf("Expire dropped %d, want 1", dropped)
	}

	_, err = gate.Resolve(context.Background(), core.ApprovalResponse{
		ApprovalID: outcome.Approval.ApprovalID,
		Approved:   true,
	})
	if !errors.Is(err, ErrUnknownApproval) {
		t.Errorf("expired ID returned %v, want ErrUnknownApproval", err)
	}
	if tool.executions != 0 {
		t.Errorf("expired approval executed the tool")
	}
}

func TestExpireKeepsFreshRequests(t *testing.T) {
	gate := NewGate()
	tool := &countingTool{name: "book_flight", needsApproval: true}
	if _, err := gate.Submit(context.Background(), tool, &core.ToolParams{}); err != nil {
		t.Fatal(err)
	}
	if dropped := gate.Expire(10 * time.Minute); dropped != 0 {
		t.Errorf("Expire dropped %d fresh requests", dropped)
	}
	if len(gate.Pending()) != 1 {
		t.Errorf("fresh request gone")
	}
}
