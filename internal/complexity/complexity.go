// Package complexity produces a [0,1] complexity score for a task
// description, combining description length, multi-step keyword
// presence, enumerated sub-requirements, and deliverable count.
package complexity

import (
	"math"
	"regexp"
	"strings"
)

var multiStepKeywords = []string{
	"then", "after that", "first", "second", "finally", "next",
	"step", "steps", "phase", "phases", "multiple", "several",
}

var enumeratedPattern = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+[.)])\s+\S`)

// Estimate returns a complexity score in [0,1].
//
// Signals, combined linearly and clamped:
//   - log-scaled description length (longer descriptions are more complex)
//   - presence of multi-step keywords
//   - number of enumerated sub-requirement lines
//   - number of extracted deliverables
func Estimate(description string, deliverableCount int) float64 {
	lengthScore := lengthSignal(description)
	keywordScore := keywordSignal(description)
	enumScore := enumerationSignal(description)
	deliverableScore := deliverableSignal(deliverableCount)

	score := 0.35*lengthScore + 0.25*keywordScore + 0.2*enumScore + 0.2*deliverableScore
	return clamp01(score)
}

func lengthSignal(description string) float64 {
	n := len(strings.TrimSpace(description))
	if n == 0 {
		return 0
	}
	// log-scaled: ~500 chars saturates the signal.
	return clamp01(math.Log1p(float64(n)) / math.Log1p(500))
}

func keywordSignal(description string) float64 {
	lower := strings.ToLower(description)
	hits := 0
	for _, kw := range multiStepKeywords {
		if hasWord(lower, kw) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return clamp01(float64(hits) / 3.0)
}

func enumerationSignal(description string) float64 {
	matches := enumeratedPattern.FindAllString(description, -1)
	if len(matches) == 0 {
		return 0
	}
	return clamp01(float64(len(matches)) / 5.0)
}

func deliverableSignal(count int) float64 {
	if count <= 0 {
		return 0
	}
	return clamp01(float64(count) / 3.0)
}

// hasWord checks for word or phrase presence; multi-word phrases (like
// "after that") fall back to substring containment since they cannot be
// split on non-alphanumeric boundaries the way single words can.
func hasWord(lower, word string) bool {
	if strings.Contains(word, " ") {
		return strings.Contains(lower, word)
	}
	for _, w := range splitWords(lower) {
		if w == word {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
