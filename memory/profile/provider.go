package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/llm"
	"github.com/marcolabs/marco-go-sdk/memory"
)

const extractionSystemPrompt = `You extract traveler preferences from a conversation.

Return ONLY a JSON object with any of these fields, omitting every field the
conversation does not clearly state:
  "travelStyle": string (e.g. "luxury", "budget", "adventure", "relaxed")
  "budgetRange": string (e.g. "under $2000", "$5000-$10000")
  "interests": array of short strings (e.g. ["hiking", "street food"])
  "pastTrips": array of {"destination": string, "rating": 1-5 integer}
  "travelers": integer, how many people usually travel together
  "tripDuration": string (e.g. "one week", "long weekends")
  "dietaryRequirements": string (e.g. "vegetarian", "halal")

Be conservative: only extract what the user explicitly stated about
themselves, including short confirmations of something the assistant asked.
Never guess, never infer from questions they ask. If the conversation
contains no preference information, return {}.`

// Config configures the profile provider.
type Config struct {
	Store  Store
	Client llm.ChatClient
	Scope  core.Scope

	// Model overrides the extraction model. Defaults to llm.DefaultModel.
	Model string
}

// Provider maintains a long-lived traveler profile. Before each turn it
// injects the known preferences as instructions; after each turn it runs
// a small extraction call over the new user message and merges anything
// learned into the stored profile.
type Provider struct {
	store  Store
	client llm.ChatClient
	scope  core.Scope
	model  string
}

// New creates a profile provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("profile: Store is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("profile: Client is required")
	}
	if err := cfg.Scope.Validate(); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = llm.DefaultModel
	}
	return &Provider{
		store:  cfg.Store,
		client: cfg.Client,
		scope:  cfg.Scope,
		model:  model,
	}, nil
}

// PreTurn renders the stored profile as instructions for the model.
func (p *Provider) PreTurn(ctx context.Context, turn *memory.Turn) (*memory.Context, error) {
	stored, err := p.store.Get(ctx, p.scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &memory.Context{Instructions: stored.Render()}, nil
}

// PostTurn extracts preferences from the turn's conversation and merges
// them into the stored profile. Extraction is skipped when the turn has
// no user message or the profile is already complete.
func (p *Provider) PostTurn(ctx context.Context, turn *memory.Turn) error {
	userMsg, ok := core.LastUserMessage(turn.Messages)
	if !ok || userMsg.Content == "" {
		return nil
	}

	stored, err := p.store.Get(ctx, p.scope)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if stored.Complete() {
		return nil
	}

	extracted, err := p.extract(ctx, turn.Messages)
	if err != nil {
		return err
	}
	if extracted == nil || extracted.Empty() {
		return nil
	}

	return p.store.Update(ctx, p.scope, func(current *Profile) bool {
		changed := current.Merge(extracted)
		if changed {
			log.Printf("[PROFILE] Updated profile for scope %s", p.scope.Key())
		}
		return changed
	})
}

// extract runs the structured-output call over the turn's conversation.
// Facts often span an exchange ("so a party of four?" / "yes"), so the
// assistant messages go along too.
func (p *Provider) extract(ctx context.Context, messages []core.Message) (*Profile, error) {
	var conv []llm.ChatMessage
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case core.RoleUser, core.RoleAssistant:
			conv = append(conv, llm.TextMessage(m.Role, m.Content))
		}
	}

	resp, err := p.client.Generate(ctx, &llm.Request{
		Model:     p.model,
		MaxTokens: 1024,
		System:    extractionSystemPrompt,
		Messages:  conv,
	})
	if err != nil {
		return nil, fmt.Errorf("profile extraction failed: %w", err)
	}

	var extracted Profile
	if err := llm.DecodeJSON(resp.Text(), &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse extracted profile: %w", err)
	}
	return &extracted, nil
}

// Serialize returns the current profile as JSON.
func (p *Provider) Serialize() (json.RawMessage, error) {
	stored, err := p.store.Get(context.Background(), p.scope)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stored)
}
