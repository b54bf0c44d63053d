package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/llm"
)

// Decider chooses which outgoing edge, if any, a turn should follow.
// Returning "" keeps the current agent. Implementations must not
// surface any text to the user; the router discards everything but the
// chosen destination.
type Decider interface {
	Decide(ctx context.Context, from *Definition, edges []Edge, conversation []core.Message) (string, error)
}

const deciderPromptSuffix = `

## ROUTING
You can transfer this conversation to a specialist by calling exactly one
of the transfer tools below. Call a transfer tool when its condition
matches the user's request. If you transfer, produce no other output.
If no condition matches, respond normally without calling a transfer tool.`

// ModelDecider delegates edge selection to the model: each edge becomes
// a synthetic transfer tool whose description is the edge condition, and
// the chosen tool names the destination. Text the model emits alongside
// a transfer is discarded, so handoffs stay silent regardless of prompt
// compliance.
type ModelDecider struct {
	client llm.ChatClient

	// Model overrides the decision model. Defaults to llm.DefaultModel.
	Model string
}

// NewModelDecider creates a decider over the given client.
func NewModelDecider(client llm.ChatClient) *ModelDecider {
	return &ModelDecider{client: client}
}

const transferPrefix = "transfer_to_"

// Decide runs one model call offering the edges as transfer tools.
func (d *ModelDecider) Decide(ctx context.Context, from *Definition, edges []Edge, conversation []core.Message) (string, error) {
	if len(edges) == 0 {
		return "", nil
	}

	specs := make([]llm.ToolSpec, 0, len(edges))
	for _, edge := range edges {
		specs = append(specs, llm.ToolSpec{
			Name:        transferPrefix + edge.To,
			Description: edge.Condition,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		})
	}

	model := d.Model
	if model == "" {
		model = llm.DefaultModel
	}

	resp, err := d.client.Generate(ctx, &llm.Request{
		Model:     model,
		MaxTokens: 256,
		System:    from.Instructions + deciderPromptSuffix,
		Messages:  toConversation(conversation),
		Tools:     specs,
	})
	if err != nil {
		return "", fmt.Errorf("routing decision failed: %w", err)
	}

	for _, use := range resp.ToolUses() {
		if dest, ok := strings.CutPrefix(use.Name, transferPrefix); ok {
			return dest, nil
		}
	}
	return "", nil
}

func toConversation(messages []core.Message) []llm.ChatMessage {
	conv := make([]llm.ChatMessage, 0, len(messages))
	for _, m := range messages {
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
