// Package llmtest provides a scripted ChatClient for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/marcolabs/marco-go-sdk/llm"
)

// Fake is a ChatClient that replays queued responses in order and records
// every request it receives. Safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	responses []*llm.Response
	Requests  []*llm.Request

	// Err, when set, is returned by every call instead of a response.
	Err error
}

// New creates an empty fake. Queue responses with Enqueue* before use.
func New() *Fake {
	return &Fake{}
}

// Enqueue appends a prepared response to the script.
func (f *Fake) Enqueue(resp *llm.Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return f
}

// EnqueueText appends a plain-text response to the script.
func (f *Fake) EnqueueText(text string) *Fake {
	return f.Enqueue(&llm.Response{
		Blocks: []llm.ContentBlock{{Type: llm.BlockText, Text: text}},
	})
}

// EnqueueToolUse appends a response that calls the named tool, optionally
// preceded by assistant text.
func (f *Fake) EnqueueToolUse(text, id, name string, input map[string]interface{}) *Fake {
	raw, _ := json.Marshal(input)
	resp := &llm.Response{}
	if text != "" {
		resp.Blocks = append(resp.Blocks, llm.ContentBlock{Type: llm.BlockText, Text: text})
	}
	resp.Blocks = append(resp.Blocks, llm.ContentBlock{
		Type: llm.BlockToolUse, ID: id, Name: name, Input: raw,
	})
	return f.Enqueue(resp)
}

// Generate replays the next scripted response.
func (f *Fake) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("llmtest: no scripted response for request %d", len(f.Requests))
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

// GenerateStream replays the next scripted response, emitting its text
// blocks through onText first.
func (f *Fake) GenerateStream(ctx context.Context, req *llm.Request, onText func(chunk string)) (*llm.Response, error) {
	resp, err := f.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if onText != nil {
		for _, block := range resp.Blocks {
			if block.Type == llm.BlockText {
				onText(block.Text)
			}
		}
	}
	return resp, nil
}
