package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"agentcore/internal/budget"
	"agentcore/internal/complexity"
	"agentcore/internal/events"
	"agentcore/internal/gateway"
	"agentcore/internal/llm"
	"agentcore/internal/selector"
	"agentcore/internal/tools"
)

// DefaultMaxSplitDepth and DefaultMaxParallel match spec.md §4.13.
const (
	DefaultMaxSplitDepth = 3
	DefaultMaxParallel   = 4
	splitComplexityFloor = 0.6
)

// SubTask is one entry of a NodeAgent's split proposal.
type SubTask struct {
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
	Sequence    int     `json:"sequence"`
}

// SplitProposal is the LLM's answer to "should this be split, and how".
type SplitProposal struct {
	SubTasks  []SubTask `json:"sub_tasks"`
	DependsOn bool      `json:"depends_on"` // true => aggregate by synthesis, not concatenation
}

// NodeConfig wires a NodeAgent's dependencies; NewTools must produce a
// fresh, isolated registry for each child context per spec.md §4.13.
type NodeConfig struct {
	Gateway *gateway.Gateway
	ChainID string

	// Selector, Candidates, and ModelChainIDs together wire spec.md
	// §4.9's task-aware model selection into leaf dispatch. The gateway's
	// Chat contract only ever addresses a stored chain.Chain by ID, never
	// a bare model, so ModelChainIDs bridges Selector's model-ID choice
	// back to the pre-registered single-entry chain that serves that
	// model: ModelChainIDs["claude-3-haiku"] names the chain ID whose
	// sole entry targets that model. A model missing from this map, or a
	// Selector error, falls back to ChainID; selection is a best-effort
	// routing optimization, never a hard dependency of a leaf run.
	Selector      *selector.Selector
	Candidates    []selector.ModelInfo
	ModelChainIDs map[string]string
	NewTools      func() tools.Registry
	MaxSplitDepth int
	MaxParallel   int
	SystemPrompt  string
	WorkspaceDir  string
	Sink          *events.Sink
	Retriever     ContextRetriever
	LeafFactory   func(id AgentID, cfg LeafConfig, b *budget.Budget, task, taskType, context string) *LeafAgent
}

// NodeAgent decides whether a task should be split into sub-tasks run
// under their own NodeAgent/LeafAgent, or handled directly by a leaf.
type NodeAgent struct {
	ID                  AgentID
	cfg                 NodeConfig
	remainingSplitDepth int
}

// NewNodeAgent constructs a node with the given remaining split depth
// (parent's remaining depth minus one, or DefaultMaxSplitDepth at the root).
func NewNodeAgent(id AgentID, cfg NodeConfig, remainingSplitDepth int) *NodeAgent {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &NodeAgent{ID: id, cfg: cfg, remainingSplitDepth: remainingSplitDepth}
}

// NewRootNodeAgent constructs the mission's root node, seeding the split
// depth from cfg.MaxSplitDepth (or DefaultMaxSplitDepth if unset).
func NewRootNodeAgent(id AgentID, cfg NodeConfig) *NodeAgent {
	depth := cfg.MaxSplitDepth
	if depth <= 0 {
		depth = DefaultMaxSplitDepth
	}
	return NewNodeAgent(id, cfg, depth)
}

// Run decides split-vs-leaf for task, executes it under b, and records
// the result (and any children) into tree.
func (n *NodeAgent) Run(ctx context.Context, tree *AgentTree, task string, b *budget.Budget) (string, error) {
	if _, ok := tree.Get(n.ID); !ok {
		if _, hasRoot := tree.Root(); !hasRoot {
			if err := tree.SetRoot(Node{ID: n.ID, Kind: KindNode, Task: task}); err != nil {
				return "", err
			}
		}
	}

	c := complexity.Estimate(task, 0)
	taskType := string(selector.InferTaskType(task))

	proposal, shouldSplit := n.maybeSplit(ctx, task, c)
	if !shouldSplit {
		return n.runLeaf(ctx, tree, n.ID, task, taskType, b)
	}

	return n.runSplit(ctx, tree, task, taskType, b, proposal)
}

// maybeSplit implements spec.md §4.13's splitting decision: split iff
// complexity >= 0.6 AND remaining_split_depth > 0 AND the LLM's
// proposal names >= 2 sub-tasks.
func (n *NodeAgent) maybeSplit(ctx context.Context, task string, c float64) (SplitProposal, bool) {
	if c < splitComplexityFloor || n.remainingSplitDepth <= 0 {
		return SplitProposal{}, false
	}

	proposal, err := n.requestSplitProposal(ctx, task)
	if err != nil || len(proposal.SubTasks) < 2 {
		return SplitProposal{}, false
	}
	return proposal, true
}

func (n *NodeAgent) requestSplitProposal(ctx context.Context, task string) (SplitProposal, error) {
	prompt := "Decide whether the following task should be split into independent sub-tasks. " +
		"Reply with JSON only: {\"sub_tasks\":[{\"description\":string,\"weight\":number,\"sequence\":int}],\"depends_on\":bool}. " +
		"Weights must sum to 1 across sub_tasks. If the task should not be split, reply {\"sub_tasks\":[]}.\n\nTask: " + task

	resp, err := n.cfg.Gateway.Chat(ctx, n.cfg.ChainID, []llm.Message{{Role: "user", Content: prompt}}, gateway.Options{})
	if err != nil {
		return SplitProposal{}, err
	}

	var proposal SplitProposal
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Message.Content)), &proposal); err != nil {
		return SplitProposal{}, fmt.Errorf("mission: invalid split proposal JSON: %w", err)
	}
	return proposal, nil
}

// runLeaf hands task directly to a LeafAgent under b.
func (n *NodeAgent) runLeaf(ctx context.Context, tree *AgentTree, id AgentID, task, taskType string, b *budget.Budget) (string, error) {
	reg := tools.NewRegistry()
	if n.cfg.NewTools != nil {
		reg = n.cfg.NewTools()
	}

	leafFactory := n.cfg.LeafFactory
	if leafFactory == nil {
		leafFactory = NewLeafAgent
	}

	var injectedContext string
	if n.cfg.Retriever != nil {
		// Retrieval is a best-effort enrichment step: a lookup failure
		// degrades to no context rather than failing the leaf run.
		if ctxText, err := n.cfg.Retriever.Retrieve(ctx, task); err == nil {
			injectedContext = ctxText
		}
	}

	chainID := n.cfg.ChainID
	if n.cfg.Selector != nil && len(n.cfg.Candidates) > 0 {
		// The leaf claims all of b (NewLeafAgent calls AllocateRemaining);
		// claim it before selection so affordability is checked against it.
		b.AllocateRemaining()
		modelID, err := n.cfg.Selector.Select(ctx, selector.Input{
			Description: task,
			TaskType:    selector.TaskType(taskType),
			Budget:      b,
			Candidates:  n.cfg.Candidates,
			ToolsUsed:   len(reg.Schemas()) > 0,
			Complexity:  complexity.Estimate(task, 0),
		})
		if err == nil {
			if routed, ok := n.cfg.ModelChainIDs[modelID]; ok {
				chainID = routed
			}
		}
	}

	leaf := leafFactory(id, LeafConfig{
		Gateway:      n.cfg.Gateway,
		ChainID:      chainID,
		Tools:        reg,
		SystemPrompt: n.cfg.SystemPrompt,
		WorkspaceDir: n.cfg.WorkspaceDir,
		Sink:         n.cfg.Sink,
	}, b, task, taskType, injectedContext)

	result, err := leaf.Run(ctx)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// runSplit allocates sub-budgets across proposal's sub-tasks, runs them
// (respecting MaxParallel), and aggregates their outputs.
func (n *NodeAgent) runSplit(ctx context.Context, tree *AgentTree, task, taskType string, b *budget.Budget, proposal SplitProposal) (string, error) {
	weighted, err := allocateSubBudgets(proposal.SubTasks, b)
	if err != nil {
		return "", err
	}

	sort.Slice(weighted, func(i, j int) bool { return weighted[i].task.Sequence < weighted[j].task.Sequence })

	results := make([]string, len(weighted))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, n.cfg.MaxParallel)

	for idx, w := range weighted {
		idx, w := idx, w
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			childID := NewAgentID()
			if err := tree.AddChild(n.ID, Node{ID: childID, Kind: KindNode, Task: w.task.Description}); err != nil {
				return err
			}

			childCfg := n.cfg
			childNode := NewNodeAgent(childID, childCfg, n.remainingSplitDepth-1)
			out, err := childNode.Run(gctx, tree, w.task.Description, w.budget)
			if err != nil {
				return err
			}
			results[idx] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	for _, w := range weighted {
		b.TrySpend(w.budget.SpentCents())
	}

	if proposal.DependsOn {
		return n.synthesize(ctx, task, results)
	}
	return strings.Join(results, "\n\n"), nil
}

type weightedSubTask struct {
	task   SubTask
	budget *budget.Budget
}

// allocateSubBudgets multiplies each sub-task's weight by the parent's
// remaining cents, floors it, and hands any floor remainder to the
// first sub-task so the total is preserved exactly, per spec.md §4.13.
// It returns an error if the parent cannot allocate a sub-budget.
func allocateSubBudgets(subTasks []SubTask, parent *budget.Budget) ([]weightedSubTask, error) {
	remaining := parent.RemainingCents()
	amounts := make([]uint64, len(subTasks))

	var allocated uint64
	for i, st := range subTasks {
		amounts[i] = uint64(st.Weight * float64(remaining))
		allocated += amounts[i]
	}
	if remainder := remaining - allocated; remainder > 0 && len(amounts) > 0 {
		amounts[0] += remainder
	}

	out := make([]weightedSubTask, len(subTasks))
	for i, st := range subTasks {
		sub, err := parent.CreateSubBudget(amounts[i])
		if err != nil {
			return nil, fmt.Errorf("mission: allocating sub-budget for %q: %w", st.Description, err)
		}
		out[i] = weightedSubTask{task: st, budget: sub}
	}
	return out, nil
}

func (n *NodeAgent) synthesize(ctx context.Context, task string, results []string) (string, error) {
	prompt := "Synthesize a single coherent answer to the task below from these dependent sub-task outputs.\n\n" +
		"Task: " + task + "\n\nSub-task outputs:\n" + strings.Join(results, "\n---\n")

	resp, err := n.cfg.Gateway.Chat(ctx, n.cfg.ChainID, []llm.Message{{Role: "user", Content: prompt}}, gateway.Options{})
	if err != nil {
		return strings.Join(results, "\n\n"), nil
	}
	return resp.Message.Content, nil
}
