package selector

import (
	"context"
	"errors"
	"sort"

	"agentcore/internal/benchmarks"
	"agentcore/internal/budget"
	"agentcore/internal/learning"
)

// ErrNoViableModel is returned when no candidate model fits the budget
// with the required safety margin.
var ErrNoViableModel = errors.New("selector: no viable model fits budget")

// CostEstimator estimates the cost in cents of running a task on a given
// model at the expected token footprint. The concrete implementation
// consults the pricing catalogue (spec.md §6); tests may stub it.
type CostEstimator func(modelID string, taskType TaskType, complexity float64) uint64

// ModelInfo describes one candidate the selector may choose, including
// whether it supports tool calls (property M1).
type ModelInfo struct {
	ModelID      string
	SupportsTool bool
}

// Selector chooses a model for a leaf task given task type, budget,
// benchmarks, and learned stats.
type Selector struct {
	benchmarks   *benchmarks.Registry
	learning     learning.Store
	learnCfg     learning.Config
	estimateCost CostEstimator
	topK         int
}

// New constructs a Selector.
func New(bench *benchmarks.Registry, store learning.Store, learnCfg learning.Config, estimator CostEstimator) *Selector {
	return &Selector{benchmarks: bench, learning: store, learnCfg: learnCfg, estimateCost: estimator, topK: 5}
}

// Input bundles the parameters to Select.
type Input struct {
	Description string
	TaskType    TaskType // if empty, inferred from Description
	Budget      *budget.Budget
	Candidates  []ModelInfo // pool of models to consider; supports_tools flag enforced here
	ToolsUsed   bool        // whether this call will supply tools to the model
	Complexity  float64
}

// Select implements spec.md §4.9:
//  1. shortlist by learned data if it meets min_samples/success_threshold,
//     else top-K benchmark scores >= 0.5
//  2. filter to models affordable within a 20% safety margin
//  3. pick the model maximising benchmark*0.6 + learned*0.4
//  4. error if nothing survives
func (s *Selector) Select(ctx context.Context, in Input) (string, error) {
	taskType := in.TaskType
	if taskType == "" {
		taskType = InferTaskType(in.Description)
	}

	candidatesByID := make(map[string]ModelInfo, len(in.Candidates))
	for _, c := range in.Candidates {
		candidatesByID[c.ModelID] = c
	}

	shortlist := s.shortlist(ctx, string(taskType), candidatesByID)

	type scoredModel struct {
		id    string
		score float64
	}
	var survivors []scoredModel

	learnedStats, _ := s.bestModelsMap(ctx, string(taskType))

	for _, modelID := range shortlist {
		info, known := candidatesByID[modelID]
		if known && in.ToolsUsed && !info.SupportsTool {
			continue // property M1
		}

		cost := s.estimateCost(modelID, taskType, in.Complexity)
		marginCost := cost + cost/5 // 20% safety margin
		if in.Budget != nil && !in.Budget.CanAfford(marginCost) {
			continue
		}

		benchScore := s.benchmarks.Capability(modelID, string(taskType))
		learnedScore := benchScore
		if ls, ok := learnedStats[modelID]; ok {
			learnedScore = ls
		}

		survivors = append(survivors, scoredModel{
			id:    modelID,
			score: benchScore*0.6 + learnedScore*0.4,
		})
	}

	if len(survivors) == 0 {
		return "", ErrNoViableModel
	}

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].score > survivors[j].score })
	return survivors[0].id, nil
}

// shortlist returns candidate model ids: learned data if it meets the
// configured thresholds, else the top-K benchmark scores >= 0.5.
func (s *Selector) shortlist(ctx context.Context, taskType string, pool map[string]ModelInfo) []string {
	if s.learning != nil {
		stats, err := s.learning.BestModels(ctx, taskType)
		if err == nil {
			var qualifying []string
			for _, st := range stats {
				if st.TotalTasks >= s.learnCfg.MinSamples && st.SuccessRate >= s.learnCfg.SuccessThreshold {
					qualifying = append(qualifying, st.SelectedModel)
				}
			}
			if len(qualifying) > 0 {
				return qualifying
			}
		}
	}

	top := s.benchmarks.TopModels(taskType, s.topK)
	var out []string
	for _, t := range top {
		if t.Score >= 0.5 {
			out = append(out, t.ModelID)
		}
	}
	if len(out) == 0 {
		// Cold start with no benchmark data at all: fall back to whatever
		// candidates the caller supplied.
		for id := range pool {
			out = append(out, id)
		}
	}
	return out
}

func (s *Selector) bestModelsMap(ctx context.Context, taskType string) (map[string]float64, error) {
	if s.learning == nil {
		return nil, nil
	}
	stats, err := s.learning.BestModels(ctx, taskType)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(stats))
	for _, st := range stats {
		out[st.SelectedModel] = st.SuccessRate
	}
	return out, nil
}
