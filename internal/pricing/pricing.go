// Package pricing implements the LLM pricing catalogue spec.md §6
// describes as an external capability: a model_id -> (prompt $/Mtok,
// completion $/Mtok, context length, supports_tools) table, with a
// built-in fallback so the core runs offline, and an optional
// LoadFromFile to refresh it from a public index.
package pricing

import (
	"encoding/json"
	"os"
	"strings"
)

// Entry is one model's pricing and capability row.
type Entry struct {
	ModelID            string  `json:"id"`
	PromptPerMTok      float64 `json:"prompt_per_mtok"`
	CompletionPerMTok  float64 `json:"completion_per_mtok"`
	ContextLength      int64   `json:"context_length"`
	MaxOutputTokens    int64   `json:"max_output_tokens,omitempty"`
	SupportsTools      bool    `json:"supports_tools"`
}

// Catalogue is a model_id -> Entry lookup with case-insensitive fallback.
type Catalogue struct {
	entries    map[string]Entry
	normalized map[string]string
}

// builtinEntries covers a handful of common models so the core runs
// offline even without a refreshed catalogue file.
var builtinEntries = []Entry{
	{ModelID: "claude-3-5-sonnet", PromptPerMTok: 3.0, CompletionPerMTok: 15.0, ContextLength: 200_000, SupportsTools: true},
	{ModelID: "claude-3-haiku", PromptPerMTok: 0.25, CompletionPerMTok: 1.25, ContextLength: 200_000, SupportsTools: true},
	{ModelID: "gpt-4o", PromptPerMTok: 2.5, CompletionPerMTok: 10.0, ContextLength: 128_000, SupportsTools: true},
	{ModelID: "gpt-4o-mini", PromptPerMTok: 0.15, CompletionPerMTok: 0.6, ContextLength: 128_000, SupportsTools: true},
	{ModelID: "gemini-1.5-pro", PromptPerMTok: 1.25, CompletionPerMTok: 5.0, ContextLength: 2_000_000, SupportsTools: true},
	{ModelID: "gemini-1.5-flash", PromptPerMTok: 0.075, CompletionPerMTok: 0.3, ContextLength: 1_000_000, SupportsTools: true},
}

// New returns a Catalogue seeded with the built-in fallback table.
func New() *Catalogue {
	c := &Catalogue{entries: make(map[string]Entry), normalized: make(map[string]string)}
	for _, e := range builtinEntries {
		c.add(e)
	}
	return c
}

// LoadFromFile loads (and replaces) the catalogue from a JSON file
// shaped as {"models": [...Entry]}.
func LoadFromFile(path string) (*Catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Models []Entry `json:"models"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	c := &Catalogue{entries: make(map[string]Entry), normalized: make(map[string]string)}
	for _, e := range payload.Models {
		c.add(e)
	}
	return c, nil
}

func (c *Catalogue) add(e Entry) {
	c.entries[e.ModelID] = e
	c.normalized[normalize(e.ModelID)] = e.ModelID
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Lookup returns modelID's pricing entry, matching case-insensitively.
func (c *Catalogue) Lookup(modelID string) (Entry, bool) {
	if e, ok := c.entries[modelID]; ok {
		return e, true
	}
	if canonical, ok := c.normalized[normalize(modelID)]; ok {
		return c.entries[canonical], true
	}
	return Entry{}, false
}

// defaultFootprintTokens is the fallback expected prompt+completion token
// count used when a complexity-scaled estimate isn't otherwise available;
// matches a short-to-medium leaf task.
const defaultFootprintTokens = 2000

// EstimateCostCents returns the expected cost in cents of running a task
// of the given complexity (0..1, scaling the assumed token footprint up
// to 8x) on modelID. Unknown models fall back to a conservative flat-rate
// estimate so selection can still proceed (a missing catalogue entry is
// not mistaken for a free model).
func (c *Catalogue) EstimateCostCents(modelID string, complexity float64) uint64 {
	entry, ok := c.Lookup(modelID)
	if !ok {
		entry = Entry{PromptPerMTok: 3.0, CompletionPerMTok: 15.0}
	}

	footprint := float64(defaultFootprintTokens) * (1 + 7*complexity)
	promptTokens := footprint * 0.7
	completionTokens := footprint * 0.3

	dollars := (promptTokens/1_000_000)*entry.PromptPerMTok + (completionTokens/1_000_000)*entry.CompletionPerMTok
	cents := dollars * 100
	if cents < 1 {
		cents = 1
	}
	return uint64(cents)
}
