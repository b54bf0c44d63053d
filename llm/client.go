// Package llm defines the chat-completion boundary the SDK consumes.
//
// The engine, router, and memory providers only ever see the ChatClient
// interface; the concrete Anthropic adapter lives alongside it so a hosted
// backend can be swapped for a fake in tests or a different provider in
// production without touching callers.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/marcolabs/marco-go-sdk/core"
)

// BlockType discriminates content blocks inside a chat message.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one unit of model input or output. Only the fields for
// the given Type are set.
type ContentBlock struct {
	Type BlockType

	// Text content (BlockText).
	Text string

	// Tool invocation requested by the model (BlockToolUse).
	ID    string
	Name  string
	Input json.RawMessage

	// Result fed back for a prior tool invocation (BlockToolResult).
	ToolUseID string
	Content   string
	IsError   bool
}

// ChatMessage is a role-tagged sequence of content blocks.
type ChatMessage struct {
	Role   core.Role
	Blocks []ContentBlock
}

// TextMessage builds a single-text-block message.
func TextMessage(role core.Role, text string) ChatMessage {
	return ChatMessage{Role: role, Blocks: []ContentBlock{{Type: BlockText, Text: text}}}
}

// ToolResultMessage builds the user-role message that carries tool results
// back to the model.
func ToolResultMessage(results ...ContentBlock) ChatMessage {
	return ChatMessage{Role: core.RoleUser, Blocks: results}
}

// ToolResultBlock builds a tool_result block for a prior tool_use ID.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// ToolSpec describes one callable function offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Request is a single chat-completion request.
type Request struct {
	Model     string
	MaxTokens int64
	System    string
	Messages  []ChatMessage
	Tools     []ToolSpec
}

// Usage tracks token consumption for one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the model's reply: an ordered sequence of text and tool_use
// blocks.
type Response struct {
	Blocks []ContentBlock
	Usage  Usage
}

// Text concatenates all text blocks in the response.
func (r *Response) Text() string {
	var b strings.Builder
	for _, block := range r.Blocks {
		if block.Type == BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// ToolUses returns the tool_use blocks in the response, in order.
func (r *Response) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, block := range r.Blocks {
		if block.Type == BlockToolUse {
			uses = append(uses, block)
		}
	}
	return uses
}

// ChatClient is the opaque request/response capability every model-facing
// component depends on. Failures surface as errors, never as panics.
type ChatClient interface {
	// Generate performs one blocking chat-completion call.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GenerateStream performs one chat-completion call, invoking onText for
	// each text delta, and returns the accumulated response.
	GenerateStream(ctx context.Context, req *Request, onText func(chunk string)) (*Response, error)
}
