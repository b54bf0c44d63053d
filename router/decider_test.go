package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/llm/llmtest"
)

func deciderEdges() []Edge {
	return []Edge{
		{From: "triage_agent", To: "trip_advisor_agent", Condition: "The user wants destination ideas"},
		{From: "triage_agent", To: "flight_search_agent", Condition: "The user wants flights"},
	}
}

func conversation(text string) []core.Message {
	return []core.Message{{Role: core.RoleUser, Content: text}}
}

func TestModelDeciderOffersTransferTools(t *testing.T) {
	fake := llmtest.New().EnqueueText("I can help with that directly.")
	d := NewModelDecider(fake)
	from := &Definition{Name: "triage_agent", Instructions: "You are the front door."}

	dest, err := d.Decide(context.Background(), from, deciderEdges(), conversation("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if dest != "" {
		t.Errorf("dest = %q for a text-only response", dest)
	}

	req := fake.Requests[0]
	if len(req.Tools) != 2 {
		t.Fatalf("offered %d tools", len(req.Tools))
	}
	if req.Tools[0].Name != "transfer_to_trip_advisor_agent" {
		t.Errorf("tool name = %q", req.Tools[0].Name)
	}
	if req.Tools[0].Description != "The user wants destination ideas" {
		t.Errorf("tool description = %q", req.Tools[0].Description)
	}
	if !strings.Contains(req.System, "You are the front door.") {
		t.Errorf("agent instructions missing from system prompt")
	}
}

func TestModelDeciderFollowsTransfer(t *testing.T) {
	fake := llmtest.New().
		EnqueueToolUse("", "tu_1", "transfer_to_flight_search_agent", nil)
	d := NewModelDecider(fake)
	from := &Definition{Name: "triage_agent"}

	dest, err := d.Decide(context.Background(), from, deciderEdges(), conversation("find me flights to Tokyo"))
	if err != nil {
		t.Fatal(err)
	}
	if dest != "flight_search_agent" {
		t.Errorf("dest = %q", dest)
	}
}

func TestModelDeciderNoEdges(t *testing.T) {
	fake := llmtest.New()
	d := NewModelDecider(fake)

	dest, err := d.Decide(context.Background(), &Definition{Name: "leaf"}, nil, conversation("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if dest != "" {
		t.Errorf("dest = %q", dest)
	}
	if len(fake.Requests) != 0 {
		t.Errorf("model called with no edges to offer")
	}
}

func TestModelDeciderPropagatesError(t *testing.T) {
	fake := llmtest.New()
	fake.Err = errors.New("model overloaded")
	d := NewModelDecider(fake)

	if _, err := d.Decide(context.Background(), &Definition{Name: "triage_agent"}, deciderEdges(), conversation("hi")); err == nil {
		t.Fatal("expected error")
	}
}

func TestModelDeciderIgnoresForeignTools(t *testing.T) {
	fake := llmtest.New().
		EnqueueToolUse("", "tu_1", "search_flights", map[string]interface{}{"origin": "MEL"})
	d := NewModelDecider(fake)

	dest, err := d.Decide(context.Background(), &Definition{Name: "triage_agent"}, deciderEdges(), conversation("flights"))
	if err != nil {
		t.Fatal(err)
	}
	if dest != "" {
		t.Errorf("dest = %q for a non-transfer tool call", dest)
	}
}
