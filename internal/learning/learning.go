// Package learning provides the LearningStore boundary — model outcome
// recording plus the two queries ModelSelector depends on — and an
// in-memory reference implementation that also serves as the offline/
// cold-start fallback: both queries return empty results when no data has
// accumulated yet, and callers must fall back to benchmarks.
package learning

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Outcome is a single recorded task execution, written once at leaf
// completion. It is never mutated afterwards.
type Outcome struct {
	TaskDescription string
	TaskType        string
	Complexity      float64
	PredictedCents  uint64
	ActualCents     uint64
	SelectedModel   string
	Success         bool
	Iterations      int
	ToolCalls       int
}

// ModelStats is aggregated performance for one model within one task type.
type ModelStats struct {
	SelectedModel string
	TaskType      string
	TotalTasks    int64
	SuccessRate   float64
	AvgCostCents  float64
	AvgIterations float64
}

// BudgetEstimate is an aggregated cost estimate for one task type and
// complexity bucket.
type BudgetEstimate struct {
	TaskType         string
	ComplexityBucket float64
	SampleCount      int64
	AvgCostCents     float64
	CostP80Cents     float64
}

// Config mirrors the reference runtime's env-overridable defaults.
type Config struct {
	MinSamples       int64
	SuccessThreshold float64
	BudgetBuffer     float64
}

// DefaultConfig returns {min_samples: 5, success_threshold: 0.7,
// budget_buffer: 1.2}.
func DefaultConfig() Config {
	return Config{MinSamples: 5, SuccessThreshold: 0.7, BudgetBuffer: 1.2}
}

// Store is the LearningStore capability boundary the core depends on.
type Store interface {
	RecordOutcome(ctx context.Context, o Outcome) error
	BestModels(ctx context.Context, taskType string) ([]ModelStats, error)
	BudgetEstimate(ctx context.Context, taskType string, complexityBucket float64) (BudgetEstimate, bool, error)
}

// MemoryStore is an in-process, append-only Store backed by the raw
// outcome log; BestModels/BudgetEstimate recompute aggregates on read.
// This mirrors the reference runtime treating the SQL views as derived,
// not stored, state.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes []Outcome
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) RecordOutcome(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

// BestModels aggregates per-model stats for taskType directly from the
// outcome log, without applying min_samples/success_threshold filtering
// (that filtering is the caller's job — see SelectModel below — so this
// boundary method stays a pure aggregate, matching the LearningStore
// queries described in spec.md §4.7).
func (s *MemoryStore) BestModels(_ context.Context, taskType string) ([]ModelStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := map[string]*aggregator{}
	for _, o := range s.outcomes {
		if o.TaskType != taskType {
			continue
		}
		a, ok := agg[o.SelectedModel]
		if !ok {
			a = &aggregator{}
			agg[o.SelectedModel] = a
		}
		a.add(o)
	}

	out := make([]ModelStats, 0, len(agg))
	for model, a := range agg {
		out = append(out, a.stats(model, taskType))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SelectedModel < out[j].SelectedModel })
	return out, nil
}

// BudgetEstimate returns the nearest-bucket cost estimate for taskType
// within the ±0.2 tolerance, as described in spec.md §4.7. The bucket
// itself is computed by the caller (floor(complexity*10)/10); this method
// is handed the already-bucketed value to keep the aggregation pure.
func (s *MemoryStore) BudgetEstimate(_ context.Context, taskType string, bucket float64) (BudgetEstimate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byBucket := map[float64][]Outcome{}
	for _, o := range s.outcomes {
		if o.TaskType != taskType {
			continue
		}
		b := math.Floor(o.Complexity*10) / 10
		byBucket[b] = append(byBucket[b], o)
	}
	if len(byBucket) == 0 {
		return BudgetEstimate{}, false, nil
	}

	bestBucket, bestDiff := 0.0, math.MaxFloat64
	found := false
	for b := range byBucket {
		diff := math.Abs(b - bucket)
		if diff < bestDiff {
			bestDiff, bestBucket, found = diff, b, true
		}
	}
	if !found || bestDiff > 0.2 {
		return BudgetEstimate{}, false, nil
	}

	outcomes := byBucket[bestBucket]
	costs := make([]float64, 0, len(outcomes))
	var sum float64
	for _, o := range outcomes {
		costs = append(costs, float64(o.ActualCents))
		sum += float64(o.ActualCents)
	}
	sort.Float64s(costs)

	return BudgetEstimate{
		TaskType:         taskType,
		ComplexityBucket: bestBucket,
		SampleCount:      int64(len(outcomes)),
		AvgCostCents:     sum / float64(len(outcomes)),
		CostP80Cents:     percentile(costs, 0.8),
	}, true, nil
}

type aggregator struct {
	total     int64
	successes int64
	costSum   float64
	iterSum   float64
}

func (a *aggregator) add(o Outcome) {
	a.total++
	if o.Success {
		a.successes++
	}
	a.costSum += float64(o.ActualCents)
	a.iterSum += float64(o.Iterations)
}

func (a *aggregator) stats(model, taskType string) ModelStats {
	successRate := 0.0
	avgCost := 0.0
	avgIter := 0.0
	if a.total > 0 {
		successRate = float64(a.successes) / float64(a.total)
		avgCost = a.costSum / float64(a.total)
		avgIter = a.iterSum / float64(a.total)
	}
	return ModelStats{
		SelectedModel: model,
		TaskType:      taskType,
		TotalTasks:    a.total,
		SuccessRate:   successRate,
		AvgCostCents:  avgCost,
		AvgIterations: avgIter,
	}
}

// percentile returns the p-th percentile (0..1) of a sorted ascending
// slice using linear interpolation between the two closest ranks (the
// percentile_cont definition).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// SelectModel implements select_model_from_learned: filter candidates by
// task type, min_samples, and success_threshold, then pick the one
// maximising success_rate / ln(avg_cost_cents + 1). Falls back to
// fallback when no candidate qualifies.
func SelectModel(taskType string, stats []ModelStats, cfg Config, fallback string) string {
	best := ""
	bestScore := math.Inf(-1)
	for _, s := range stats {
		if s.TaskType != taskType {
			continue
		}
		if s.TotalTasks < cfg.MinSamples || s.SuccessRate < cfg.SuccessThreshold {
			continue
		}
		cost := s.AvgCostCents
		if cost == 0 {
			cost = 100.0
		}
		score := s.SuccessRate / math.Log(cost+1.0)
		if score > bestScore {
			bestScore = score
			best = s.SelectedModel
		}
	}
	if best == "" {
		return fallback
	}
	return best
}

// EstimateBudgetCents implements estimate_budget_from_learned:
// ceil(cost_p80 * buffer), floored at 10 cents, or fallbackCents when no
// matching estimate is found.
func EstimateBudgetCents(estimate BudgetEstimate, found bool, cfg Config, fallbackCents uint64) uint64 {
	if !found {
		return fallbackCents
	}
	budget := uint64(math.Ceil(estimate.CostP80Cents * cfg.BudgetBuffer))
	if budget < 10 {
		budget = 10
	}
	return budget
}

// BestModelsByTaskType implements get_best_models_by_task_type: the best
// scoring model (by the same success_rate/ln(cost+1) formula) per task
// type, for quick lookup across all types at once.
func BestModelsByTaskType(stats []ModelStats, cfg Config) map[string]string {
	type scored struct {
		model string
		score float64
	}
	best := map[string]scored{}
	for _, s := range stats {
		if s.TotalTasks < cfg.MinSamples || s.SuccessRate < cfg.SuccessThreshold {
			continue
		}
		if s.TaskType == "" {
			continue
		}
		cost := s.AvgCostCents
		if cost == 0 {
			cost = 100.0
		}
		score := s.SuccessRate / math.Log(cost+1.0)
		cur, ok := best[s.TaskType]
		if !ok || score > cur.score {
			best[s.TaskType] = scored{model: s.SelectedModel, score: score}
		}
	}
	out := make(map[string]string, len(best))
	for taskType, sc := range best {
		out[taskType] = sc.model
	}
	return out
}

// Bucket computes the complexity bucket used to key budget estimates:
// floor(complexity*10)/10.
func Bucket(complexity float64) float64 {
	return math.Floor(complexity*10) / 10
}
