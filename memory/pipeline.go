package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Pipeline aggregates an ordered list of providers into a single provider.
// Hooks fan out to every provider in registration order; one provider's
// failure never blocks the others and never aborts the turn. The pipeline
// owns no state beyond the provider list.
type Pipeline struct {
	providers []Provider
}

// NewPipeline builds a pipeline over the given providers. At least one
// provider is required.
func NewPipeline(providers ...Provider) (*Pipeline, error) {
	if len(providers) == 0 {
		return nil, errors.New("memory: pipeline requires at least one provider")
	}
	return &Pipeline{providers: providers}, nil
}

// PreTurn invokes every provider's PreTurn in order and merges the results:
// instruction text is concatenated as-is, so each provider owns its own
// trailing separator; injected messages preserve per-provider order.
func (p *Pipeline) PreTurn(ctx context.Context, turn *Turn) (*Context, error) {
	merged := &Context{}
	var instructions strings.Builder

	for i, provider := range p.providers {
		contrib, err := isolatePre(ctx, provider, turn)
		if err != nil {
			log.Printf("[MEMORY] Provider #%d PreTurn failed, skipping: %v", i+1, err)
			continue
		}
		if contrib.Empty() {
			continue
		}
		instructions.WriteString(contrib.Instructions)
		merged.Messages = append(merged.Messages, contrib.Messages...)
	}

	merged.Instructions = instructions.String()
	return merged, nil
}

// PostTurn invokes every provider's PostTurn in order. Turns that failed
// produce no memory writes at all.
func (p *Pipeline) PostTurn(ctx context.Context, turn *Turn) error {
	if turn.Err != nil {
		log.Printf("[MEMORY] Turn errored, skipping post-turn capture: %v", turn.Err)
		return nil
	}

	for i, provider := range p.providers {
		if err := isolatePost(ctx, provider, turn); err != nil {
			log.Printf("[MEMORY] Provider #%d PostTurn failed, continuing: %v", i+1, err)
		}
	}
	return nil
}

// Serialize snapshots every provider's state in registration order.
func (p *Pipeline) Serialize() (json.RawMessage, error) {
	snapshots := make([]json.RawMessage, 0, len(p.providers))
	for _, provider := range p.providers {
		snap, err := provider.Serialize()
		if err != nil {
			snap = json.RawMessage(`null`)
		}
		snapshots = append(snapshots, snap)
	}
	return json.Marshal(map[string]interface{}{"providers": snapshots})
}

// isolatePre runs one provider's PreTurn, converting panics into errors so
// a misbehaving provider cannot take down the turn.
func isolatePre(ctx context.Context, provider Provider, turn *Turn) (contrib *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			contrib, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()
	return provider.PreTurn(ctx, turn)
}

func isolatePost(ctx context.Context, provider Provider, turn *Turn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return provider.PostTurn(ctx, turn)
}
