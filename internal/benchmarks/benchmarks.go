// Package benchmarks provides a static, per-model capability-score lookup
// used by ModelSelector as a cold-start fallback when no learned data is
// available for a task type.
package benchmarks

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
)

// CategoryScores holds a model's benchmark score per task category, each
// in [0,1]. A nil pointer means "no data for this category".
type CategoryScores struct {
	Code        *float64 `json:"code,omitempty"`
	Math        *float64 `json:"math,omitempty"`
	Reasoning   *float64 `json:"reasoning,omitempty"`
	ToolCalling *float64 `json:"tool_calling,omitempty"`
	LongContext *float64 `json:"long_context,omitempty"`
	General     *float64 `json:"general,omitempty"`
}

// Get returns the score for the given task type, if present.
func (c *CategoryScores) Get(taskType string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	var p *float64
	switch taskType {
	case "code":
		p = c.Code
	case "math":
		p = c.Math
	case "reasoning":
		p = c.Reasoning
	case "tool_calling":
		p = c.ToolCalling
	case "long_context":
		p = c.LongContext
	case "general":
		p = c.General
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// BestScore returns the highest score across all populated categories.
func (c *CategoryScores) BestScore() (float64, bool) {
	best, any := 0.0, false
	for _, p := range c.all() {
		if p == nil {
			continue
		}
		if !any || *p > best {
			best = *p
			any = true
		}
	}
	return best, any
}

func (c *CategoryScores) all() []*float64 {
	if c == nil {
		return nil
	}
	return []*float64{c.Code, c.Math, c.Reasoning, c.ToolCalling, c.LongContext, c.General}
}

// ModelBenchmark is one model's benchmark entry.
type ModelBenchmark struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	ContextLength  *int64          `json:"context_length,omitempty"`
	CategoryScores *CategoryScores `json:"category_scores,omitempty"`
}

// Capability returns this model's score for taskType, defaulting to the
// neutral 0.5 when no data is available.
func (m ModelBenchmark) Capability(taskType string) float64 {
	if score, ok := m.CategoryScores.Get(taskType); ok {
		return score
	}
	return 0.5
}

// HasBenchmarks reports whether this entry carries any category data.
func (m ModelBenchmark) HasBenchmarks() bool {
	return m.CategoryScores != nil
}

// data is the on-disk benchmark file format.
type data struct {
	GeneratedAt          string           `json:"generated_at"`
	TotalModels          int              `json:"total_models"`
	ModelsWithBenchmarks int              `json:"models_with_benchmarks"`
	Categories           []string         `json:"categories"`
	Models               []ModelBenchmark `json:"models"`
}

// Registry is a model-id -> benchmark lookup with fuzzy matching.
type Registry struct {
	models     map[string]ModelBenchmark
	normalized map[string]string // normalized id/name -> original id
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		models:     make(map[string]ModelBenchmark),
		normalized: make(map[string]string),
	}
}

// LoadFromFile loads a benchmark table from a JSON file in the format
// produced alongside models_with_benchmarks.json.
func LoadFromFile(path string) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d data
	if err := json.Unmarshal(content, &d); err != nil {
		return nil, err
	}

	r := New()
	for _, m := range d.Models {
		r.add(m)
	}
	return r, nil
}

func (r *Registry) add(m ModelBenchmark) {
	normalized := normalizeID(m.ID)
	if _, exists := r.normalized[normalized]; !exists {
		r.normalized[normalized] = m.ID
	}
	if namePart := lastPathSegment(m.ID); namePart != "" {
		normalizedName := normalizeID(namePart)
		if _, exists := r.normalized[normalizedName]; !exists {
			r.normalized[normalizedName] = m.ID
		}
	}
	r.models[m.ID] = m
}

// normalizeID lowercases and strips ':', '-', '_', '.' (but keeps '/' so
// the provider prefix still participates in matching).
func normalizeID(id string) string {
	lower := strings.ToLower(id)
	replacer := strings.NewReplacer(":", "", "-", "", "_", "", ".", "")
	return replacer.Replace(lower)
}

func lastPathSegment(id string) string {
	parts := strings.Split(id, "/")
	return parts[len(parts)-1]
}

// Get looks up a model by id: exact match, then normalized match, then
// normalized match on the last path segment.
func (r *Registry) Get(modelID string) (ModelBenchmark, bool) {
	if m, ok := r.models[modelID]; ok {
		return m, true
	}

	normalized := normalizeID(modelID)
	if originalID, ok := r.normalized[normalized]; ok {
		return r.models[originalID], true
	}

	if namePart := lastPathSegment(modelID); namePart != "" {
		normalizedName := normalizeID(namePart)
		if originalID, ok := r.normalized[normalizedName]; ok {
			return r.models[originalID], true
		}
	}

	return ModelBenchmark{}, false
}

// Capability returns the model's score for taskType, defaulting to the
// neutral 0.5 for unknown models.
func (r *Registry) Capability(modelID, taskType string) float64 {
	if m, ok := r.Get(modelID); ok {
		return m.Capability(taskType)
	}
	return 0.5
}

// TopModels returns the top n (model_id, score) pairs for taskType,
// highest first.
func (r *Registry) TopModels(taskType string, n int) []ModelScore {
	var scores []ModelScore
	for id, m := range r.models {
		if score, ok := m.CategoryScores.Get(taskType); ok {
			scores = append(scores, ModelScore{ModelID: id, Score: score})
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if n >= 0 && len(scores) > n {
		scores = scores[:n]
	}
	return scores
}

// ModelScore pairs a model id with a score.
type ModelScore struct {
	ModelID string
	Score   float64
}

// BenchmarkCount returns the number of models that carry benchmark data.
func (r *Registry) BenchmarkCount() int {
	count := 0
	for _, m := range r.models {
		if m.HasBenchmarks() {
			count++
		}
	}
	return count
}
