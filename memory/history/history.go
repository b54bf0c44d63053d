// Package history recalls semantically similar past messages for each
// turn. Every user and assistant message is embedded and written to the
// vector store; before each model call the latest user message is used
// as a similarity query and the matches are injected as context.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/memory"
)

// DefaultMaxResults bounds how many recalled messages are injected.
const DefaultMaxResults = 10

// Config configures the chat-history provider.
type Config struct {
	Store    memory.Store
	Embedder memory.Embedder

	// Container names the store partition for chat documents.
	// Defaults to "chat-history".
	Container string

	// WriteScope partitions stored messages; ReadScope partitions recall.
	// They normally match, but a broader read scope lets an agent recall
	// messages written by another agent for the same user.
	WriteScope core.Scope
	ReadScope  core.Scope

	// MaxResults caps recalled messages. Defaults to DefaultMaxResults.
	MaxResults int
}

// Provider implements vector-similarity chat recall.
type Provider struct {
	store      memory.Store
	embedder   memory.Embedder
	container  string
	writeScope core.Scope
	readScope  core.Scope
	maxResults int
}

// New creates a chat-history provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("history: Store is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("history: Embedder is required")
	}
	if err := cfg.WriteScope.Validate(); err != nil {
		return nil, fmt.Errorf("history: write scope: %w", err)
	}
	if cfg.ReadScope == (core.Scope{}) {
		cfg.ReadScope = cfg.WriteScope
	}
	if err := cfg.ReadScope.Validate(); err != nil {
		return nil, fmt.Errorf("history: read scope: %w", err)
	}
	if cfg.Container == "" {
		cfg.Container = "chat-history"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return &Provider{
		store:      cfg.Store,
		embedder:   cfg.Embedder,
		container:  cfg.Container,
		writeScope: cfg.WriteScope,
		readScope:  cfg.ReadScope,
		maxResults: cfg.MaxResults,
	}, nil
}

// PreTurn stores the incoming user message, then recalls similar past
// messages and injects them as a single system-role message.
func (p *Provider) PreTurn(ctx context.Context, turn *memory.Turn) (*memory.Context, error) {
	userMsg, ok := core.LastUserMessage(turn.Messages)
	if !ok || userMsg.Content == "" {
		return &memory.Context{}, nil
	}

	embedding, err := p.embedder.Embed(ctx, userMsg.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed user message: %w", err)
	}

	doc := memory.NewDocument(p.writeScope, string(core.RoleUser), userMsg.Content)
	doc.Embedding = embedding
	if err := p.store.CreateDocument(ctx, p.container, doc); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	recalled, err := p.store.QuerySimilar(ctx, p.container, p.readScope, embedding, p.maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}

	// Drop the message we just wrote; recalling it adds nothing.
	filtered := recalled[:0]
	for _, d := range recalled {
		if d.ID == doc.ID {
			continue
		}
		filtered = append(filtered, d)
	}
	if len(filtered) == 0 {
		return &memory.Context{}, nil
	}

	log.Printf("[HISTORY] Recalled %d messages for scope %s", len(filtered), p.readScope.Key())
	return &memory.Context{
		Messages: []core.Message{core.NewSystemMessage(render(filtered))},
	}, nil
}

// PostTurn stores each assistant message produced during the turn.
func (p *Provider) PostTurn(ctx context.Context, turn *memory.Turn) error {
	for _, msg := range turn.Response {
		if msg.Role != core.RoleAssistant || msg.Content == "" {
			continue
		}
		embedding, err := p.embedder.Embed(ctx, msg.Content)
		if err != nil {
			return fmt.Errorf("failed to embed assistant message: %w", err)
		}
		doc := memory.NewDocument(p.writeScope, string(core.RoleAssistant), msg.Content)
		doc.Embedding = embedding
		if err := p.store.CreateDocument(ctx, p.container, doc); err != nil {
			return fmt.Errorf("failed to store assistant message: %w", err)
		}
	}
	return nil
}

func render(docs []memory.Document) string {
	var b strings.Builder
	b.WriteString("## Chat History\n")
	b.WriteString("Consider the following previous messages:\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "[%s] %s\n", d.Role, d.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Serialize returns the provider's configuration snapshot.
func (p *Provider) Serialize() (json.RawMessage, error) {
	return json.Marshal(map[string]interface{}{
		"container":   p.container,
		"write_scope": p.writeScope.Key(),
		"read_scope":  p.readScope.Key(),
		"max_results": p.maxResults,
	})
}
