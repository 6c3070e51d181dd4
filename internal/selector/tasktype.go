// Package selector infers a task's TaskType from its description and
// chooses a model for a leaf task given task type, budget, benchmarks,
// and learned stats.
package selector

import "strings"

// TaskType is the closed enum governing model selection.
type TaskType string

const (
	TaskCode        TaskType = "code"
	TaskMath        TaskType = "math"
	TaskReasoning   TaskType = "reasoning"
	TaskToolCalling TaskType = "tool_calling"
	TaskLongContext TaskType = "long_context"
	TaskGeneral     TaskType = "general"
)

// InferTaskType infers a TaskType from a task description by matching
// against curated keyword sets, defaulting to "general". Code keywords
// match as whole words; the other sets match as substrings. Keyword sets and
// precedence order are ported verbatim from the reference benchmark
// registry's infer_from_description.
func InferTaskType(description string) TaskType {
	lower := strings.ToLower(description)

	codeWords := []string{"code", "implement", "function", "bug", "debug", "refactor", "test", "tests", "compile", "script", "api"}
	for _, w := range codeWords {
		if hasWord(lower, w) {
			return TaskCode
		}
	}
	if strings.Contains(lower, "programming") {
		return TaskCode
	}

	mathPhrases := []string{"math", "calculate", "equation", "formula", "prove", "number", "algorithm", "sum", "prime", "fibonacci", "factor", "integer", "solve", "multiply", "divide"}
	for _, w := range mathPhrases {
		if strings.Contains(lower, w) {
			return TaskMath
		}
	}

	toolPhrases := []string{"tool", "fetch", "search", "file", "directory", "command", "browser", "screenshot", "navigate", "website", "webpage", "url"}
	for _, w := range toolPhrases {
		if strings.Contains(lower, w) {
			return TaskToolCalling
		}
	}

	longContextPhrases := []string{"long", "document", "analyze", "summarize", "multiple files"}
	for _, w := range longContextPhrases {
		if strings.Contains(lower, w) {
			return TaskLongContext
		}
	}

	reasoningPhrases := []string{"reason", "explain", "why", "how", "analyze"}
	for _, w := range reasoningPhrases {
		if strings.Contains(lower, w) {
			return TaskReasoning
		}
	}

	return TaskGeneral
}

// hasWord checks whether word appears as a whole word (split on
// non-alphanumeric boundaries), avoiding false positives like
// "interesting" matching "test".
func hasWord(lower, word string) bool {
	for _, w := range splitWords(lower) {
		if w == word {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	var words []string
	start := -1
	isAlnum := func(r byte) bool {
		return r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
	}
	for i := 0; i < len(s); i++ {
		if isAlnum(s[i]) {
			if start == -1 {
				start = i
			}
		} else if start != -1 {
			words = append(words, s[start:i])
			start = -1
		}
	}
	if start != -1 {
		words = append(words, s[start:])
	}
	return words
}
