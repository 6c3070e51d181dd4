package mission

import (
	"context"
	"encoding/json"
	"time"

	"agentcore/internal/budget"
	"agentcore/internal/events"
	"agentcore/internal/gateway"
	"agentcore/internal/learning"
	"agentcore/internal/llm"
	"agentcore/internal/tools"
)

// State names the LeafAgent's position in the spec.md §4.12 state
// machine: Ready -> Calling -> AwaitingTools -> Calling -> ... -> Done.
type State string

const (
	StateReady         State = "ready"
	StateCalling       State = "calling"
	StateAwaitingTools State = "awaiting_tools"
	StateDoneOK        State = "done_ok"
	StateDoneErr       State = "done_err"
	StateAborted       State = "aborted"
)

// DefaultMaxIterations bounds a leaf's tool-calling loop, per spec.md §4.12.
const DefaultMaxIterations = 30

// EstimatedCallCents is the pre-call cost guess spent against the
// budget before the true cost is known from provider usage; the true-up
// happens once Chat returns.
const EstimatedCallCents = 1

// CentsPerThousandTokens converts a ChatResponse's token usage into a
// true-up cost once it is known, in cents.
const CentsPerThousandTokens = 2

// LeafConfig wires the dependencies a LeafAgent needs to run.
type LeafConfig struct {
	Gateway       *gateway.Gateway
	ChainID       string
	Tools         tools.Registry
	MaxIterations int
	SystemPrompt  string
	WorkspaceDir  string
	Sink          *events.Sink
}

// LeafResult is what a completed (or aborted) leaf run produces.
type LeafResult struct {
	State      State
	Output     string
	Iterations int
	ToolCalls  int
	Outcome    learning.Outcome
	Warnings   []string
}

// LeafAgent drives a single tool-calling loop against the gateway on
// behalf of one task description, bounded by its own sub-budget.
type LeafAgent struct {
	ID       AgentID
	cfg      LeafConfig
	budget   *budget.Budget
	task     string
	taskType string
	messages []llm.Message
	state    State
}

// NewLeafAgent constructs a leaf bound to task, with injectedContext
// (from retrieval, if any) folded into the opening turn per spec.md
// §4.12 step 1.
func NewLeafAgent(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, injectedContext string) *LeafAgent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	// A leaf is always a terminal spender: it never splits its budget
	// further, so it claims whatever total it was given.
	b.AllocateRemaining()

	var messages []llm.Message
	if cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: cfg.SystemPrompt})
	}
	if injectedContext != "" {
		messages = append(messages, llm.Message{Role: "system", Content: "Relevant context:\n" + injectedContext})
	}
	messages = append(messages, llm.Message{Role: "user", Content: task})

	return &LeafAgent{
		ID:       id,
		cfg:      cfg,
		budget:   b,
		task:     task,
		taskType: taskType,
		messages: messages,
		state:    StateReady,
	}
}

// Run executes the tool-calling loop to completion, budget exhaustion,
// the iteration cap, or cancellation.
func (l *LeafAgent) Run(ctx context.Context) (LeafResult, error) {
	l.state = StateCalling
	iterations := 0
	toolCalls := 0
	var warnings []string

	var toolSchemas []llm.ToolSchema
	if l.cfg.Tools != nil {
		toolSchemas = l.cfg.Tools.Schemas()
	}

	for iterations < l.cfg.MaxIterations {
		select {
		case <-ctx.Done():
			l.state = StateAborted
			return l.result(StateAborted, "", iterations, toolCalls, false, warnings), ctx.Err()
		default:
		}

		if !l.budget.CanAfford(EstimatedCallCents) {
			warnings = append(warnings, "budget exhausted before iteration limit")
			break
		}

		preSpend := l.budget.TrySpend(EstimatedCallCents)
		iterations++

		resp, err := l.cfg.Gateway.Chat(ctx, l.cfg.ChainID, l.messages, gateway.Options{Tools: toolSchemas})
		if err != nil {
			l.state = StateDoneErr
			return l.result(StateDoneErr, "", iterations, toolCalls, false, append(warnings, err.Error())), err
		}
		l.trueUp(preSpend, resp.Usage)

		l.emit(events.LlmCall, map[string]any{"iteration": iterations, "provider": resp.ProviderID, "model": resp.ModelID})
		l.messages = append(l.messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			l.state = StateDoneOK
			return l.result(StateDoneOK, resp.Message.Content, iterations, toolCalls, true, warnings), nil
		}

		l.state = StateAwaitingTools
		for _, tc := range resp.Message.ToolCalls {
			toolCalls++
			payload := l.dispatchTool(ctx, tc)
			l.messages = append(l.messages, llm.Message{Role: "tool", Content: string(payload), ToolID: tc.ID})
			l.emit(events.ToolResult, map[string]any{"tool": tc.Name, "call_id": tc.ID})
		}
		l.state = StateCalling
	}

	warnings = append(warnings, "iteration limit reached")
	lastText := lastAssistantText(l.messages)
	return l.result(StateDoneOK, lastText, iterations, toolCalls, len(warnings) <= 1, warnings), nil
}

func (l *LeafAgent) dispatchTool(ctx context.Context, tc llm.ToolCall) []byte {
	if l.cfg.Tools == nil {
		return []byte(`{"ok":false,"error":"no tool registry configured"}`)
	}
	payload, err := l.cfg.Tools.Dispatch(ctx, tc.Name, tc.Args)
	if err != nil {
		b, _ := json.Marshal(map[string]any{"ok": false, "error": err.Error()})
		return b
	}
	return payload
}

// trueUp converts a ChatResponse's token usage into an actual cost and
// spends the delta against preSpend, per spec.md §4.12 step 2a.
func (l *LeafAgent) trueUp(preSpendCents uint64, usage gateway.Usage) {
	actual := uint64(usage.TotalTokens/1000) * CentsPerThousandTokens
	if actual > preSpendCents {
		l.budget.TrySpend(actual - preSpendCents)
	}
}

func (l *LeafAgent) emit(typ events.Type, payload any) {
	if l.cfg.Sink == nil {
		return
	}
	l.cfg.Sink.TrySend(events.Event{
		Type:    typ,
		AgentID: string(l.ID),
		Seq:     l.cfg.Sink.NextSeq(),
		At:      time.Now(),
		Payload: payload,
	})
}

func (l *LeafAgent) result(state State, output string, iterations, toolCalls int, success bool, warnings []string) LeafResult {
	return LeafResult{
		State:      state,
		Output:     output,
		Iterations: iterations,
		ToolCalls:  toolCalls,
		Warnings:   warnings,
		Outcome: learning.Outcome{
			TaskDescription: l.task,
			TaskType:        l.taskType,
			ActualCents:     l.budget.SpentCents(),
			Success:         success,
			Iterations:      iterations,
			ToolCalls:       toolCalls,
		},
	}
}

func lastAssistantText(msgs []llm.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "assistant" && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}
