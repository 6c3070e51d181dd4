package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"agentcore/internal/benchmarks"
	"agentcore/internal/budget"
	"agentcore/internal/learning"
)

func f(v float64) *float64 { return &v }

func TestInferTaskType(t *testing.T) {
	require.Equal(t, TaskCode, InferTaskType("Implement a function to sort arrays"))
	require.Equal(t, TaskMath, InferTaskType("Calculate the integral of x^2"))
	require.Equal(t, TaskToolCalling, InferTaskType("Search for files containing 'error'"))
	require.Equal(t, TaskReasoning, InferTaskType("Explain why the sky is blue"))
	require.Equal(t, TaskGeneral, InferTaskType("hello there"))
}

func TestInferTaskTypeWholeWordNotSubstring(t *testing.T) {
	// "interesting" should not match "test" as a substring.
	require.NotEqual(t, TaskCode, InferTaskType("this is an interesting topic"))
}

func newBenchRegistry() *benchmarks.Registry {
	r := benchmarks.New()
	return r
}

func TestSelectPicksHighestCombinedScoreWithinBudget(t *testing.T) {
	bench := benchmarks.New()
	estimator := func(modelID string, taskType TaskType, complexity float64) uint64 {
		if modelID == "expensive/model" {
			return 1000
		}
		return 10
	}

	s := New(bench, nil, learning.DefaultConfig(), estimator)
	b := budget.New(100)
	require.NoError(t, b.Allocate(100))

	in := Input{
		Description: "implement a function",
		Budget:      b,
		Candidates: []ModelInfo{
			{ModelID: "cheap/model", SupportsTool: true},
			{ModelID: "expensive/model", SupportsTool: true},
		},
	}

	selected, err := s.Select(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "cheap/model", selected)
}

func TestSelectNoViableModelWhenNoneAffordable(t *testing.T) {
	bench := benchmarks.New()
	estimator := func(modelID string, taskType TaskType, complexity float64) uint64 { return 1000 }

	s := New(bench, nil, learning.DefaultConfig(), estimator)
	b := budget.New(10)
	require.NoError(t, b.Allocate(10))

	in := Input{
		Description: "implement a function",
		Budget:      b,
		Candidates:  []ModelInfo{{ModelID: "only/model", SupportsTool: true}},
	}

	_, err := s.Select(context.Background(), in)
	require.ErrorIs(t, err, ErrNoViableModel)
}

func TestSelectRejectsModelsWithoutToolSupportWhenToolsRequired(t *testing.T) {
	bench := benchmarks.New()
	estimator := func(modelID string, taskType TaskType, complexity float64) uint64 { return 1 }

	s := New(bench, nil, learning.DefaultConfig(), estimator)
	b := budget.New(1000)
	require.NoError(t, b.Allocate(1000))

	in := Input{
		Description: "implement a function",
		ToolsUsed:   true,
		Candidates:  []ModelInfo{{ModelID: "no-tools/model", SupportsTool: false}},
	}

	_, err := s.Select(context.Background(), in)
	require.ErrorIs(t, err, ErrNoViableModel)
}

func TestSelectPrefersLearnedShortlistWhenQualified(t *testing.T) {
	bench := benchmarks.New()
	store := learning.NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordOutcome(ctx, learning.Outcome{
			TaskType: "code", SelectedModel: "learned/model", Success: true, ActualCents: 5,
		}))
	}

	estimator := func(modelID string, taskType TaskType, complexity float64) uint64 { return 1 }
	s := New(bench, store, learning.DefaultConfig(), estimator)
	b := budget.New(1000)
	require.NoError(t, b.Allocate(1000))

	in := Input{
		Description: "implement a function",
		Candidates:  []ModelInfo{{ModelID: "learned/model", SupportsTool: true}},
	}

	selected, err := s.Select(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "learned/model", selected)
}
