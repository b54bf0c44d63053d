package engine

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/marcolabs/marco-go-sdk/approval"
	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/llm"
	"github.com/marcolabs/marco-go-sdk/llm/llmtest"
	"github.com/marcolabs/marco-go-sdk/memory"
	"github.com/marcolabs/marco-go-sdk/tools"
)

var testScope = core.Scope{ApplicationID: "test-app", UserID: "user-1"}

func echoTool(name string, gated bool, calls *int) core.Tool {
	b := tools.New(name).
		Description("echoes its input").
		Schema(tools.ObjectSchema(map[string]interface{}{
			"value": tools.StringProperty("value to echo"),
		})).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			if calls != nil {
				*calls++
			}
			return &core.ToolResult{Success: true, Data: string(params.Input)}, nil
		})
	if gated {
		b = b.RequiresApproval()
	}
	return b.MustBuild()
}

func TestRunPlainResponse(t *testing.T) {
	fake := llmtest.New().EnqueueText("Queenstown is lovely in autumn.")
	e := NewEngine(fake, tools.NewRegistry(), approval.NewGate())

	out, err := e.Run(context.Background(), &Input{UserMessage: "where should I go?", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputComplete {
		t.Fatalf("Type = %v", out.Type)
	}
	if out.Text != "Queenstown is lovely in autumn." {
		t.Errorf("Text = %q", out.Text)
	}
	if len(fake.Requests) != 1 {
		t.Errorf("made %d model calls", len(fake.Requests))
	}
}

func TestRunDispatchesTools(t *testing.T) {
	calls := 0
	fake := llmtest.New().
		EnqueueToolUse("Let me check.", "tu_1", "echo", map[string]interface{}{"value": "hi"}).
		EnqueueText("Done.")
	e := NewEngine(fake, tools.NewRegistry(echoTool("echo", false, &calls)), approval.NewGate())

	out, err := e.Run(context.Background(), &Input{UserMessage: "use the tool", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputComplete {
		t.Fatalf("Type = %v, error = %v", out.Type, out.Error)
	}
	if calls != 1 {
		t.Errorf("tool executed %d times", calls)
	}
	if len(out.ToolsUsed) != 1 || out.ToolsUsed[0].Tool != "echo" {
		t.Errorf("ToolsUsed = %+v", out.ToolsUsed)
	}

	// The second request must carry the tool result back to the model.
	second := fake.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	if len(last.Blocks) == 0 || last.Blocks[0].Type != llm.BlockToolResult {
		t.Errorf("tool result not returned to model: %+v", last)
	}
}

func TestRunUnknownTool(t *testing.T) {
	fake := llmtest.New().
		EnqueueToolUse("", "tu_1", "nonexistent", nil).
		EnqueueText("Sorry, I can't do that.")
	e := NewEngine(fake, tools.NewRegistry(), approval.NewGate())

	out, err := e.Run(context.Background(), &Input{UserMessage: "hi", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputComplete {
		t.Fatalf("Type = %v", out.Type)
	}

	second := fake.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	if !last.Blocks[0].IsError {
		t.Error("unknown tool not reported as an error result")
	}
}

func TestRunParksOnApproval(t *testing.T) {
	calls := 0
	fake := llmtest.New().
		EnqueueToolUse("Booking now.", "tu_1", "book", map[string]interface{}{"value": "QF35"})
	gate := approval.NewGate()
	e := NewEngine(fake, tools.NewRegistry(echoTool("book", true, &calls)), gate)

	out, err := e.Run(context.Background(), &Input{UserMessage: "book it", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputApprovalNeeded {
		t.Fatalf("Type = %v", out.Type)
	}
	if out.Approval == nil || out.Approval.FunctionName != "book" {
		t.Fatalf("Approval = %+v", out.Approval)
	}
	if calls != 0 {
		t.Errorf("gated tool ran before approval")
	}

	// Approve and resume: the tool runs and the loop continues.
	fake.EnqueueText("Booked!")
	resumed, err := e.Resume(context.Background(), core.ApprovalResponse{
		ApprovalID: out.Approval.ApprovalID,
		Approved:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Type != OutputComplete {
		t.Fatalf("resumed Type = %v, error = %v", resumed.Type, resumed.Error)
	}
	if resumed.Text != "Booked!" {
		t.Errorf("Text = %q", resumed.Text)
	}
	if calls != 1 {
		t.Errorf("tool executed %d times after approval", calls)
	}
}

func TestResumeAnswersSiblingToolCalls(t *testing.T) {
	searches, books := 0, 0
	// One assistant message batching a read tool call with a gated one.
	fake := llmtest.New().Enqueue(&llm.Response{Blocks: []llm.ContentBlock{
		{Type: llm.BlockText, Text: "Checking and booking."},
		{Type: llm.BlockToolUse, ID: "tu_search", Name: "search", Input: json.RawMessage(`{"value": "MEL-NRT"}`)},
		{Type: llm.BlockToolUse, ID: "tu_book", Name: "book", Input: json.RawMessage(`{"value": "QF35"}`)},
	}})

	registry := tools.NewRegistry(echoTool("search", false, &searches), echoTool("book", true, &books))
	e := NewEngine(fake, registry, approval.NewGate())

	out, err := e.Run(context.Background(), &Input{UserMessage: "find and book", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputApprovalNeeded {
		t.Fatalf("Type = %v", out.Type)
	}
	if searches != 1 {
		t.Fatalf("search ran %d times before parking", searches)
	}
	if len(out.ToolsUsed) != 1 || out.ToolsUsed[0].Tool != "search" {
		t.Errorf("parked ToolsUsed = %+v", out.ToolsUsed)
	}

	fake.EnqueueText("Booked!")
	resumed, err := e.Resume(context.Background(), core.ApprovalResponse{
		ApprovalID: out.Approval.ApprovalID,
		Approved:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Type != OutputComplete {
		t.Fatalf("resumed Type = %v, error = %v", resumed.Type, resumed.Error)
	}
	if books != 1 {
		t.Errorf("gated tool executed %d times", books)
	}

	// Both tool_use blocks must be answered in the resumed request.
	second := fake.Requests[1]
	results := second.Messages[len(second.Messages)-1]
	answered := map[string]bool{}
	for _, block := range results.Blocks {
		if block.Type == llm.BlockToolResult {
			answered[block.ToolUseID] = true
		}
	}
	if !answered["tu_search"] || !answered["tu_book"] {
		t.Errorf("unanswered tool calls, results = %v", answered)
	}

	// The resumed output reports every tool executed across the run.
	names := map[string]bool{}
	for _, exec := range resumed.ToolsUsed {
		names[exec.Tool] = true
	}
	if !names["search"] || !names["book"] {
		t.Errorf("ToolsUsed dropped across the park: %+v", resumed.ToolsUsed)
	}
}

func TestResumeRunsUndispatchedSiblings(t *testing.T) {
	reads := 0
	// The read tool call comes after the gated one, so it is still
	// undispatched when the run parks.
	fake := llmtest.New().Enqueue(&llm.Response{Blocks: []llm.ContentBlock{
		{Type: llm.BlockToolUse, ID: "tu_book", Name: "book", Input: json.RawMessage(`{"value": "QF35"}`)},
		{Type: llm.BlockToolUse, ID: "tu_read", Name: "read", Input: json.RawMessage(`{"value": "status"}`)},
	}})

	registry := tools.NewRegistry(echoTool("book", true, nil), echoTool("read", false, &reads))
	e := NewEngine(fake, registry, approval.NewGate())

	out, err := e.Run(context.Background(), &Input{UserMessage: "book then check", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputApprovalNeeded {
		t.Fatalf("Type = %v", out.Type)
	}
	if reads != 0 {
		t.Fatalf("trailing sibling ran before resume")
	}

	fake.EnqueueText("All done.")
	resumed, err := e.Resume(context.Background(), core.ApprovalResponse{
		ApprovalID: out.Approval.ApprovalID,
		Approved:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Type != OutputComplete {
		t.Fatalf("resumed Type = %v, error = %v", resumed.Type, resumed.Error)
	}
	if reads != 1 {
		t.Errorf("trailing sibling ran %d times after resume", reads)
	}

	results := fake.Requests[1].Messages[len(fake.Requests[1].Messages)-1]
	answered := map[string]bool{}
	for _, block := range results.Blocks {
		if block.Type == llm.BlockToolResult {
			answered[block.ToolUseID] = true
		}
	}
	if !answered["tu_book"] || !answered["tu_read"] {
		t.Errorf("unanswered tool calls, results = %v", answered)
	}
}

func TestResumeDenied(t *testing.T) {
	calls := 0
	fake := llmtest.New().
		EnqueueToolUse("", "tu_1", "book", map[string]interface{}{"value": "QF35"})
	e := NewEngine(fake, tools.NewRegistry(echoTool("book", true, &calls)), approval.NewGate())

	out, err := e.Run(context.Background(), &Input{UserMessage: "book it", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}

	fake.EnqueueText("Understood, I won't book it.")
	resumed, err := e.Resume(context.Background(), core.ApprovalResponse{
		ApprovalID: out.Approval.ApprovalID,
		Approved:   false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Type != OutputComplete {
		t.Fatalf("Type = %v", resumed.Type)
	}
	if calls != 0 {
		t.Errorf("denied tool executed %d times", calls)
	}

	// The denial reaches the model as an error tool result.
	last := fake.Requests[1].Messages[len(fake.Requests[1].Messages)-1]
	if !last.Blocks[0].IsError || !strings.Contains(last.Blocks[0].Content, "denied") {
		t.Errorf("denial not surfaced to model: %+v", last.Blocks[0])
	}
}

func TestResumeUnknownApproval(t *testing.T) {
	e := NewEngine(llmtest.New(), tools.NewRegistry(), approval.NewGate())
	if _, err := e.Resume(context.Background(), core.ApprovalResponse{ApprovalID: "nope", Approved: true}); err == nil {
		t.Fatal("expected error for unknown approval")
	}
}

func TestRunMaxTurns(t *testing.T) {
	fake := llmtest.New()
	for i := 0; i < 5; i++ {
		fake.EnqueueToolUse("", "tu_1", "echo", map[string]interface{}{"value": "again"})
	}
	e := NewEngine(fake, tools.NewRegistry(echoTool("echo", false, nil)), approval.NewGate(), WithMaxTurns(3))

	out, err := e.Run(context.Background(), &Input{UserMessage: "loop forever", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputError {
		t.Fatalf("Type = %v", out.Type)
	}
	if !strings.Contains(out.Error.Error(), "maximum turns") {
		t.Errorf("Error = %v", out.Error)
	}
}

func TestRunModelError(t *testing.T) {
	fake := llmtest.New()
	fake.Err = context.DeadlineExceeded
	e := NewEngine(fake, tools.NewRegistry(), approval.NewGate())

	out, err := e.Run(context.Background(), &Input{UserMessage: "hi", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputError {
		t.Fatalf("Type = %v", out.Type)
	}
}

func TestRunStreamCallback(t *testing.T) {
	fake := llmtest.New().EnqueueText("streamed reply")
	e := NewEngine(fake, tools.NewRegistry(), approval.NewGate())

	var chunks []string
	out, err := e.Run(context.Background(), &Input{
		UserMessage:    "hi",
		Scope:          testScope,
		StreamCallback: func(chunk string) { chunks = append(chunks, chunk) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "streamed reply" {
		t.Errorf("Text = %q", out.Text)
	}
	if len(chunks) != 1 || chunks[0] != "streamed reply" {
		t.Errorf("chunks = %v", chunks)
	}
}

// recordingProvider captures the hooks the engine invokes.
type recordingProvider struct {
	instructions string
	preTurns     []*memory.Turn
	postTurns    []*memory.Turn
}

func (r *recordingProvider) PreTurn(ctx context.Context, turn *memory.Turn) (*memory.Context, error) {
	r.preTurns = append(r.preTurns, turn)
	return &memory.Context{Instructions: r.instructions}, nil
}

func (r *recordingProvider) PostTurn(ctx context.Context, turn *memory.Turn) error {
	r.postTurns = append(r.postTurns, turn)
	return nil
}

func (r *recordingProvider) Serialize() (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func TestRunMemoryHooks(t *testing.T) {
	provider := &recordingProvider{instructions: "## Traveler Profile\n- Budget: $2000"}
	fake := llmtest.New().EnqueueText("noted")
	e := NewEngine(fake, tools.NewRegistry(), approval.NewGate(), WithMemory(provider))

	out, err := e.Run(context.Background(), &Input{
		UserMessage:  "I like hiking",
		Scope:        testScope,
		SystemPrompt: "You are a travel assistant.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputComplete {
		t.Fatalf("Type = %v", out.Type)
	}

	// Memory instructions land in the system prompt after the base prompt.
	system := fake.Requests[0].System
	if !strings.HasPrefix(system, "You are a travel assistant.") {
		t.Errorf("base prompt displaced: %q", system)
	}
	if !strings.Contains(system, "Traveler Profile") {
		t.Errorf("memory instructions missing: %q", system)
	}

	if len(provider.preTurns) != 1 || len(provider.postTurns) != 1 {
		t.Fatalf("hooks: pre=%d post=%d", len(provider.preTurns), len(provider.postTurns))
	}
	post := provider.postTurns[0]
	if len(post.Response) != 1 || post.Response[0].Content != "noted" {
		t.Errorf("post-turn response = %+v", post.Response)
	}
	if post.Err != nil {
		t.Errorf("completed turn carries error %v", post.Err)
	}
}

func TestRunMemoryHooksOnError(t *testing.T) {
	provider := &recordingProvider{}
	fake := llmtest.New()
	fake.Err = context.DeadlineExceeded
	e := NewEngine(fake, tools.NewRegistry(), approval.NewGate(), WithMemory(provider))

	out, err := e.Run(context.Background(), &Input{UserMessage: "hi", Scope: testScope})
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != OutputError {
		t.Fatalf("Type = %v", out.Type)
	}
	if len(provider.postTurns) != 1 {
		t.Fatalf("PostTurn called %d times", len(provider.postTurns))
	}
	if provider.postTurns[0].Err == nil {
		t.Error("failed turn reached PostTurn without its error")
	}
}
