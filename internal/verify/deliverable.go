// Package verify extracts expected deliverables from a mission prompt and
// checks them against the filesystem (or assistant output) once a leaf or
// mission completes.
package verify

import (
	"context"
	"os"
	"regexp"
	"strings"
)

// Kind distinguishes the three deliverable shapes.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindReport
)

// Deliverable is either a filesystem path (file or directory) or a report
// description with an optional target path.
type Deliverable struct {
	Kind        Kind
	Path        string // empty for a pathless report
	Description string
	Topic       string // only meaningful for KindReport
}

// Exists checks whether the deliverable is satisfied. A pathless report
// is considered satisfied by definition here; callers should additionally
// require non-empty assistant text for that case (spec.md §4.11).
func (d Deliverable) Exists(ctx context.Context) bool {
	switch d.Kind {
	case KindFile:
		info, err := os.Stat(d.Path)
		return err == nil && !info.IsDir()
	case KindDirectory:
		info, err := os.Stat(d.Path)
		return err == nil && info.IsDir()
	case KindReport:
		if d.Path == "" {
			return true
		}
		_, err := os.Stat(d.Path)
		return err == nil
	default:
		return false
	}
}

// Set is the result of extracting deliverables from a mission prompt.
type Set struct {
	Deliverables   []Deliverable
	IsResearchTask bool
	RequiresReport bool
}

// Missing returns the subset of deliverables that do not currently exist.
func (s Set) Missing(ctx context.Context) []Deliverable {
	var missing []Deliverable
	for _, d := range s.Deliverables {
		if !d.Exists(ctx) {
			missing = append(missing, d)
		}
	}
	return missing
}

// AllComplete reports whether every deliverable currently exists.
func (s Set) AllComplete(ctx context.Context) bool {
	return len(s.Missing(ctx)) == 0
}

// MissingPaths returns the paths of missing deliverables (reports without
// a path are never "missing" by path).
func (s Set) MissingPaths(ctx context.Context) []string {
	var paths []string
	for _, d := range s.Missing(ctx) {
		if d.Path != "" {
			paths = append(paths, d.Path)
		}
	}
	return paths
}

var (
	researchKeywords = []string{"research", "analyze", "investigate", "study", "explore", "find out"}
	reportKeywords   = []string{"report", "summary", "findings", "analysis", "documentation"}

	verbPathPattern     = regexp.MustCompile(`(?i)(?:create|write|save|output|generate|produce|put|store)(?:\s+\w+)*?\s+(?:at|to|in)\s+(/[\w/.+-]+)`)
	explicitPathPattern = regexp.MustCompile(`(/root/[\w/.+-]+\.(?:md|json|txt|py|sh|yaml|yml|csv|html|xml))`)
	deliverableSection  = regexp.MustCompile(`(?i)(?:deliverable|output|result)s?:\s*\n(?:[-*]\s*)?(/[\w/.+-]+)`)
	dirPattern          = regexp.MustCompile(`(?i)(?:clone|download|extract)(?:\s+\w+)*?\s+(?:to|into)\s+(/[\w/.+-]+)`)
	topicPattern        = regexp.MustCompile(`(?i)(?:about|on|regarding)\s+(.+?)(?:\.|,|$)`)
)

// ExtractDeliverables parses a user message to identify expected
// deliverables, ported from the reference runtime's free-text extraction
// heuristics.
func ExtractDeliverables(message string) Set {
	lower := strings.ToLower(message)

	var deliverables []Deliverable
	seen := map[string]bool{}
	add := func(d Deliverable) {
		if d.Path != "" && seen[d.Path] {
			return
		}
		if d.Path != "" {
			seen[d.Path] = true
		}
		deliverables = append(deliverables, d)
	}

	isResearch := false
	for _, kw := range researchKeywords {
		if strings.Contains(lower, kw) {
			isResearch = true
			break
		}
	}

	requiresReport := false
	for _, kw := range reportKeywords {
		if strings.Contains(lower, kw) {
			requiresReport = true
			break
		}
	}

	for _, m := range verbPathPattern.FindAllStringSubmatch(message, -1) {
		add(Deliverable{Kind: KindFile, Path: m[1]})
	}
	for _, m := range explicitPathPattern.FindAllStringSubmatch(message, -1) {
		add(Deliverable{Kind: KindFile, Path: m[1]})
	}
	for _, m := range deliverableSection.FindAllStringSubmatch(message, -1) {
		add(Deliverable{Kind: KindFile, Path: m[1]})
	}
	for _, m := range dirPattern.FindAllStringSubmatch(message, -1) {
		path := m[1]
		if !strings.Contains(lastSegment(path), ".") {
			add(Deliverable{Kind: KindDirectory, Path: path})
		}
	}

	hasReport := false
	var reportPath string
	for _, d := range deliverables {
		if d.Kind == KindReport {
			hasReport = true
		}
		if d.Kind == KindFile && strings.HasSuffix(d.Path, ".md") && reportPath == "" {
			reportPath = d.Path
		}
	}

	if requiresReport && !hasReport {
		topic := "the requested topic"
		if m := topicPattern.FindStringSubmatch(message); m != nil {
			topic = strings.TrimSpace(m[1])
		}
		if reportPath == "" {
			add(Deliverable{Kind: KindReport, Topic: topic})
		}
	}

	return Set{Deliverables: deliverables, IsResearchTask: isResearch, RequiresReport: requiresReport}
}

func lastSegment(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx == -1 {
		return path
	}
	return path[idx+1:]
}
