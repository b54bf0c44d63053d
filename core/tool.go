package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a named callable function exposed to an agent.
//
// Tools with real-world side effects (payments) must report
// RequiresApproval() == true so the engine routes the call through the
// approval gate instead of executing it inline. Read-only tools must not
// require approval.
type Tool interface {
	Name() string
	Description() string

	// InputSchema returns the JSON Schema for the tool's parameters.
	InputSchema() map[string]interface{}

	// RequiresApproval reports whether a human must confirm before execution.
	RequiresApproval() bool

	// Execute runs the tool. Handler failures are returned as a ToolResult
	// with Success=false so the model can explain them conversationally;
	// a non-nil error means the call itself could not be performed.
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

// ToolParams carries the resolved arguments and caller identity for one
// tool invocation.
type ToolParams struct {
	Scope     Scope
	Input     json.RawMessage
	RequestID string
}

// ToolResult is the structured outcome of a tool invocation.
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Errorf builds a failed ToolResult. The error text is surfaced to the
// model, not thrown out of the conversation.
func Errorf(format string, args ...interface{}) *ToolResult {
	return &ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}
