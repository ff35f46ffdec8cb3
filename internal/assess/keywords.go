// Package assess turns a task's text and history into a 1-10 complexity
// score used for tier routing. A deterministic rule-based pass always
// runs; an optional secondary model opinion refines it when available.
package assess

import (
	"regexp"
	"strings"
)

// ComplexityKeywords is the single source of truth for complexity
// classification keywords. High keywords add weight, medium keywords add
// less, low keywords subtract.
type ComplexityKeywords struct {
	// High keywords indicate structural or cross-cutting work.
	High []string

	// Medium keywords indicate multi-file but bounded work.
	Medium []string

	// Low keywords indicate trivial, single-spot changes.
	Low []string
}

// DefaultComplexityKeywords returns the authoritative keyword buckets.
var DefaultComplexityKeywords = ComplexityKeywords{
	High: []string{
		"refactor",
		"architecture",
		"api",
		"redesign",
		"migrate",
		"migration",
		"rewrite",
		"restructure",
		"security",
		"authentication",
		"concurrency",
		"database",
		"schema",
		"distributed",
		"integration",
	},

	Medium: []string{
		"implement",
		"feature",
		"endpoint",
		"validation",
		"optimize",
		"cache",
		"handler",
		"parser",
		"pipeline",
	},

	Low: []string{
		"typo",
		"rename",
		"comment",
		"formatting",
		"whitespace",
		"readme",
		"docs",
	},
}

var stepMarker = regexp.MustCompile(`(?i)\bstep\s+\d+`)

// countMatches returns how many keywords from the bucket appear in the
// lowercased text. Each keyword counts at most once.
func countMatches(lower string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}

// countStepMarkers counts explicit "Step N" markers in the text.
func countStepMarkers(text string) int {
	return len(stepMarker.FindAllString(text, -1))
}
