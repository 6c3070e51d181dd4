package mission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"agentcore/internal/benchmarks"
	"agentcore/internal/budget"
	"agentcore/internal/chain"
	"agentcore/internal/events"
	"agentcore/internal/gateway"
	"agentcore/internal/health"
	"agentcore/internal/learning"
	"agentcore/internal/llm"
	"agentcore/internal/selector"
	"agentcore/internal/tools"
)

// jsonProvider replies with a fixed JSON string for every Chat call, for
// exercising NodeAgent's split-proposal parsing without a real LLM.
type jsonProvider struct {
	replies []string
	calls   int
}

func (p *jsonProvider) Chat(ctx context.Context, msgs []llm.Message, toolSchemas []llm.ToolSchema, model string) (llm.Message, error) {
	if p.calls >= len(p.replies) {
		return llm.Message{}, errors.New("jsonProvider: ran out of replies")
	}
	reply := p.replies[p.calls]
	p.calls++
	return llm.Message{Role: "assistant", Content: reply}, nil
}

func (p *jsonProvider) ChatStream(ctx context.Context, msgs []llm.Message, toolSchemas []llm.ToolSchema, model string, h llm.StreamHandler) error {
	msg, err := p.Chat(ctx, msgs, toolSchemas, model)
	if err != nil {
		return err
	}
	h.OnDelta(msg.Content)
	return nil
}

// complexTaskDescription clears the 0.6 splitting floor from
// internal/complexity's length, keyword, and enumeration signals:
// roughly 350 characters, four step keywords, and four enumerated lines.
const complexTaskDescription = `First, design the system. Then implement it. Next, test it thoroughly. Finally, document everything about this distributed, multi-phase rate limiter project with several independent components.

1. the token bucket core
2. the Redis-backed shared state layer
3. the HTTP middleware integration
4. the metrics and alerting dashboard
`

type nodeStaticCreds struct{}

func (nodeStaticCreds) Resolve(ctx context.Context, providerID, accountID string) (chain.Credentials, error) {
	return chain.Credentials{APIKey: "test-key"}, nil
}

func newNodeTestGateway(t *testing.T, p gateway.Provider) *gateway.Gateway {
	t.Helper()
	store := chain.NewMemoryStore(chain.Chain{
		ID:   chain.BuiltinSmartID,
		Name: "smart",
		Entries: []chain.Entry{
			{ProviderID: "primary", ModelID: "m1", AccountID: "acct-1"},
		},
	})
	resolver := chain.NewResolver(store, health.NewTracker(), nodeStaticCreds{})
	factory := func(entry chain.ResolvedEntry) (gateway.Provider, error) { return p, nil }
	return gateway.New(resolver, factory, health.NewTracker(), events.NewSink(16))
}

func TestRunDoesNotSplitBelowComplexityFloor(t *testing.T) {
	// The split-proposal provider is never called because complexity stays
	// under the 0.6 floor for a short, single-step task.
	proposalProvider := &jsonProvider{}
	gw := newNodeTestGateway(t, proposalProvider)

	var leafCalled bool
	leafFactory := func(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, injected string) *LeafAgent {
		leafCalled = true
		leafGW := newNodeTestGateway(t, &jsonProvider{replies: []string{"leaf output"}})
		cfg.Gateway = leafGW
		return NewLeafAgent(id, cfg, b, task, taskType, injected)
	}

	cfg := NodeConfig{
		Gateway:     gw,
		ChainID:     chain.BuiltinSmartID,
		NewTools:    func() tools.Registry { return tools.NewRegistry() },
		LeafFactory: leafFactory,
	}

	tree := NewAgentTree()
	root := NewRootNodeAgent(NewAgentID(), cfg)
	b := budget.New(1000)

	out, err := root.Run(context.Background(), tree, "fix typo", b)
	require.NoError(t, err)
	require.Equal(t, "leaf output", out)
	require.True(t, leafCalled)
	require.Equal(t, 0, proposalProvider.calls)
}

func TestRunSplitsComplexTaskAndConcatenates(t *testing.T) {
	complexTask := complexTaskDescription

	proposalJSON := `{"sub_tasks":[` +
		`{"description":"token bucket core","weight":0.5,"sequence":0},` +
		`{"description":"redis layer","weight":0.5,"sequence":1}` +
		`],"depends_on":false}`
	proposalProvider := &jsonProvider{replies: []string{proposalJSON}}
	gw := newNodeTestGateway(t, proposalProvider)

	var gotTasks []string
	leafFactory := func(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, injected string) *LeafAgent {
		gotTasks = append(gotTasks, task)
		leafGW := newNodeTestGateway(t, &jsonProvider{replies: []string{"output for: " + task}})
		cfg.Gateway = leafGW
		return NewLeafAgent(id, cfg, b, task, taskType, injected)
	}

	cfg := NodeConfig{
		Gateway:     gw,
		ChainID:     chain.BuiltinSmartID,
		NewTools:    func() tools.Registry { return tools.NewRegistry() },
		LeafFactory: leafFactory,
	}

	tree := NewAgentTree()
	root := NewRootNodeAgent(NewAgentID(), cfg)
	b := budget.New(1000)

	out, err := root.Run(context.Background(), tree, complexTask, b)
	require.NoError(t, err)
	require.Contains(t, out, "output for: token bucket core")
	require.Contains(t, out, "output for: redis layer")
	require.Len(t, gotTasks, 2)

	// two leaves plus the root node itself
	require.Equal(t, 3, tree.Len())
	require.Len(t, tree.FindByKind(KindNode), 3)
}

func TestRunDoesNotSplitWhenProposalHasFewerThanTwoSubTasks(t *testing.T) {
	complexTask := complexTaskDescription

	proposalProvider := &jsonProvider{replies: []string{`{"sub_tasks":[]}`}}
	gw := newNodeTestGateway(t, proposalProvider)

	var leafCalled bool
	leafFactory := func(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, injected string) *LeafAgent {
		leafCalled = true
		leafGW := newNodeTestGateway(t, &jsonProvider{replies: []string{"leaf output"}})
		cfg.Gateway = leafGW
		return NewLeafAgent(id, cfg, b, task, taskType, injected)
	}

	cfg := NodeConfig{
		Gateway:     gw,
		ChainID:     chain.BuiltinSmartID,
		NewTools:    func() tools.Registry { return tools.NewRegistry() },
		LeafFactory: leafFactory,
	}

	tree := NewAgentTree()
	root := NewRootNodeAgent(NewAgentID(), cfg)
	b := budget.New(1000)

	out, err := root.Run(context.Background(), tree, complexTask, b)
	require.NoError(t, err)
	require.Equal(t, "leaf output", out)
	require.True(t, leafCalled)
}

func TestAllocateSubBudgetsDistributesFloorRemainderToFirst(t *testing.T) {
	parent := budget.New(10)
	subTasks := []SubTask{
		{Description: "a", Weight: 1.0 / 3, Sequence: 0},
		{Description: "b", Weight: 1.0 / 3, Sequence: 1},
		{Description: "c", Weight: 1.0 / 3, Sequence: 2},
	}

	weighted, err := allocateSubBudgets(subTasks, parent)
	require.NoError(t, err)
	require.Len(t, weighted, 3)

	// floor(10/3) == 3 for each, leaving a remainder of 1 cent that must
	// land on the first sub-task so the total is preserved exactly.
	require.Equal(t, uint64(4), weighted[0].budget.TotalCents())
	require.Equal(t, uint64(3), weighted[1].budget.TotalCents())
	require.Equal(t, uint64(3), weighted[2].budget.TotalCents())

	var total uint64
	for _, w := range weighted {
		total += w.budget.TotalCents()
		// Freshly split sub-budgets start unallocated, ready either for
		// further splitting or for a leaf to claim via AllocateRemaining.
		require.Equal(t, w.budget.TotalCents(), w.budget.RemainingCents())
	}
	require.Equal(t, uint64(10), total)
	require.Equal(t, uint64(0), parent.RemainingCents())
}

func TestRunSplitRespectsMaxParallel(t *testing.T) {
	proposalJSON := `{"sub_tasks":[` +
		`{"description":"t1","weight":0.25,"sequence":0},` +
		`{"description":"t2","weight":0.25,"sequence":1},` +
		`{"description":"t3","weight":0.25,"sequence":2},` +
		`{"description":"t4","weight":0.25,"sequence":3}` +
		`],"depends_on":false}`
	proposalProvider := &jsonProvider{replies: []string{proposalJSON}}
	gw := newNodeTestGateway(t, proposalProvider)

	leafFactory := func(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, injected string) *LeafAgent {
		leafGW := newNodeTestGateway(t, &jsonProvider{replies: []string{"done: " + task}})
		cfg.Gateway = leafGW
		return NewLeafAgent(id, cfg, b, task, taskType, injected)
	}

	cfg := NodeConfig{
		Gateway:     gw,
		ChainID:     chain.BuiltinSmartID,
		NewTools:    func() tools.Registry { return tools.NewRegistry() },
		LeafFactory: leafFactory,
		MaxParallel: 2,
	}

	complexTask := complexTaskDescription

	tree := NewAgentTree()
	root := NewRootNodeAgent(NewAgentID(), cfg)
	b := budget.New(1000)

	out, err := root.Run(context.Background(), tree, complexTask, b)
	require.NoError(t, err)
	require.Contains(t, out, "done: t1")
	require.Contains(t, out, "done: t4")
}

func TestRunSynthesizesWhenProposalDependsOn(t *testing.T) {
	proposalJSON := `{"sub_tasks":[` +
		`{"description":"design","weight":0.5,"sequence":0},` +
		`{"description":"implement based on design","weight":0.5,"sequence":1}` +
		`],"depends_on":true}`

	synthesisProvider := &jsonProvider{replies: []string{proposalJSON, "synthesized final answer"}}
	gw := newNodeTestGateway(t, synthesisProvider)

	leafFactory := func(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, injected string) *LeafAgent {
		leafGW := newNodeTestGateway(t, &jsonProvider{replies: []string{"partial: " + task}})
		cfg.Gateway = leafGW
		return NewLeafAgent(id, cfg, b, task, taskType, injected)
	}

	cfg := NodeConfig{
		Gateway:     gw,
		ChainID:     chain.BuiltinSmartID,
		NewTools:    func() tools.Registry { return tools.NewRegistry() },
		LeafFactory: leafFactory,
	}

	complexTask := complexTaskDescription

	tree := NewAgentTree()
	root := NewRootNodeAgent(NewAgentID(), cfg)
	b := budget.New(1000)

	out, err := root.Run(context.Background(), tree, complexTask, b)
	require.NoError(t, err)
	require.Equal(t, "synthesized final answer", out)
}

func TestRunRespectsMaxSplitDepth(t *testing.T) {
	// depth 0 means no split should be attempted regardless of complexity.
	proposalProvider := &jsonProvider{}
	gw := newNodeTestGateway(t, proposalProvider)

	var leafCalled bool
	leafFactory := func(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, injected string) *LeafAgent {
		leafCalled = true
		leafGW := newNodeTestGateway(t, &jsonProvider{replies: []string{"leaf output"}})
		cfg.Gateway = leafGW
		return NewLeafAgent(id, cfg, b, task, taskType, injected)
	}

	cfg := NodeConfig{
		Gateway:     gw,
		ChainID:     chain.BuiltinSmartID,
		NewTools:    func() tools.Registry { return tools.NewRegistry() },
		LeafFactory: leafFactory,
	}

	complexTask := complexTaskDescription

	tree := NewAgentTree()
	node := NewNodeAgent(NewAgentID(), cfg, 0)
	b := budget.New(1000)

	out, err := node.Run(context.Background(), tree, complexTask, b)
	require.NoError(t, err)
	require.Equal(t, "leaf output", out)
	require.True(t, leafCalled)
	require.Equal(t, 0, proposalProvider.calls)
}

func TestRunLeafRoutesThroughSelectorChosenModel(t *testing.T) {
	// Two candidate models exist, but only m2 fits within the budget's 20%
	// safety margin: the selector must pick m2, and runLeaf must route to
	// the chain ModelChainIDs maps it to rather than the default ChainID.
	proposalProvider := &jsonProvider{}
	gw := newNodeTestGateway(t, proposalProvider)

	var usedChainID string
	leafFactory := func(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, injected string) *LeafAgent {
		usedChainID = cfg.ChainID
		// The stub gateway only stores builtin/smart; run the leaf there.
		cfg.ChainID = chain.BuiltinSmartID
		leafGW := newNodeTestGateway(t, &jsonProvider{replies: []string{"leaf output"}})
		cfg.Gateway = leafGW
		return NewLeafAgent(id, cfg, b, task, taskType, injected)
	}

	estimator := func(modelID string, taskType selector.TaskType, complexity float64) uint64 {
		if modelID == "m1" {
			return 1_000_000 // unaffordable against the test's 1000-cent budget
		}
		return 1
	}
	sel := selector.New(benchmarks.New(), learning.NewMemoryStore(), learning.DefaultConfig(), estimator)

	cfg := NodeConfig{
		Gateway:  gw,
		ChainID:  chain.BuiltinSmartID,
		Selector: sel,
		Candidates: []selector.ModelInfo{
			{ModelID: "m1", SupportsTool: true},
			{ModelID: "m2", SupportsTool: true},
		},
		ModelChainIDs: map[string]string{"m2": "fast-lane"},
		NewTools:      func() tools.Registry { return tools.NewRegistry() },
		LeafFactory:   leafFactory,
	}

	tree := NewAgentTree()
	root := NewRootNodeAgent(NewAgentID(), cfg)
	b := budget.New(1000)

	out, err := root.Run(context.Background(), tree, "fix typo", b)
	require.NoError(t, err)
	require.Equal(t, "leaf output", out)
	require.Equal(t, "fast-lane", usedChainID)
}
