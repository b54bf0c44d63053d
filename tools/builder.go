package tools

import (
	"context"
	"fmt"

	"github.com/marcolabs/marco-go-sdk/core"
)

// Handler executes one tool call.
type Handler func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error)

// funcTool is a core.Tool backed by a plain function.
type funcTool struct {
	name             string
	description      string
	inputSchema      map[string]interface{}
	requiresApproval bool
	handler          Handler
}

func (t *funcTool) Name() string                        { return t.name }
func (t *funcTool) Description() string                 { return t.description }
func (t *funcTool) InputSchema() map[string]interface{} { return t.inputSchema }
func (t *funcTool) RequiresApproval() bool              { return t.requiresApproval }

func (t *funcTool) Execute(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	return t.handler(ctx, params)
}

// Builder assembles a core.Tool from a function.
type Builder struct {
	tool funcTool
}

// New starts building a tool with the given name.
func New(name string) *Builder {
	return &Builder{tool: funcTool{name: name}}
}

// Description sets the tool description shown to the model.
func (b *Builder) Description(d string) *Builder {
	b.tool.description = d
	return b
}

// Schema sets the JSON Schema for the tool input.
func (b *Builder) Schema(s map[string]interface{}) *Builder {
	b.tool.inputSchema = s
	return b
}

// RequiresApproval marks the tool as needing an explicit user decision
// before it executes.
func (b *Builder) RequiresApproval() *Builder {
	b.tool.requiresApproval = true
	return b
}

// Handler sets the function that executes the tool.
func (b *Builder) Handler(h Handler) *Builder {
	b.tool.handler = h
	return b
}

// Build validates and returns the tool.
func (b *Builder) Build() (core.Tool, error) {
	if b.tool.name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if b.tool.handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", b.tool.name)
	}
	if b.tool.inputSchema == nil {
		b.tool.inputSchema = ObjectSchema(map[string]interface{}{})
	}
	return &b.tool, nil
}

// MustBuild is Build for package-level tool construction where the
// inputs are static.
func (b *Builder) MustBuild() core.Tool {
	tool, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tool
}
