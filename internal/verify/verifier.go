package verify

import (
	"context"
	"strings"
)

// CrossChecker performs an optional, non-blocking LLM cross-check of
// whether the assistant's output accomplishes the task. Its failure
// never hard-fails verification — only downgrades to a warning.
type CrossChecker func(ctx context.Context, taskDescription, assistantOutput string) (ok bool, reason string, err error)

// Result is the outcome of verifying a leaf result against a Set.
type Result struct {
	OK           bool
	MissingPaths []string
	Warnings     []string
}

// Verifier checks deliverable existence and, optionally, performs a
// secondary LLM cross-check that can only add warnings.
type Verifier struct {
	crossCheck CrossChecker
}

// New constructs a Verifier. crossCheck may be nil to disable the
// secondary check entirely.
func New(crossCheck CrossChecker) *Verifier {
	return &Verifier{crossCheck: crossCheck}
}

// Verify checks set against the filesystem and, if configured, runs the
// cross-check. A deliverable marked as a file or directory passes only if
// it exists on disk; reports without paths pass if assistantOutput is
// non-empty.
func (v *Verifier) Verify(ctx context.Context, taskDescription, assistantOutput string, set Set) Result {
	var missingPaths []string
	var warnings []string
	ok := true

	for _, d := range set.Deliverables {
		switch d.Kind {
		case KindFile, KindDirectory:
			if !d.Exists(ctx) {
				missingPaths = append(missingPaths, d.Path)
				ok = false
			}
		case KindReport:
			if d.Path != "" {
				if !d.Exists(ctx) {
					missingPaths = append(missingPaths, d.Path)
					ok = false
				}
			} else if strings.TrimSpace(assistantOutput) == "" {
				ok = false
				warnings = append(warnings, "report deliverable expected but assistant output was empty")
			}
		}
	}

	if v.crossCheck != nil {
		passed, reason, err := v.crossCheck(ctx, taskDescription, assistantOutput)
		if err != nil {
			warnings = append(warnings, "cross-check unavailable: "+err.Error())
		} else if !passed {
			warnings = append(warnings, "cross-check: "+reason)
		}
	}

	return Result{OK: ok, MissingPaths: missingPaths, Warnings: warnings}
}
