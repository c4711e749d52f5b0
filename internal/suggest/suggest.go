// Package suggest offers "did you mean" candidates for mistyped names using
// Levenshtein distance.
package suggest

import (
	"fmt"
	"slices"
	"strings"
)

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Closest returns up to three names from valid that are close to unknown,
// best first. Matching ignores case and treats '-' and '_' alike.
func Closest(unknown string, valid []string) []string {
	norm := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	}
	u := norm(unknown)

	type scored struct {
		name  string
		score int
	}
	var candidates []scored
	for _, v := range valid {
		dist := levenshtein(u, norm(v))
		// within 2 edits or a third of the length
		if dist <= max(2, len(u)/3) {
			candidates = append(candidates, scored{v, dist})
		}
	}
	slices.SortStableFunc(candidates, func(a, b scored) int { return a.score - b.score })

	var out []string
	for i := 0; i < len(candidates) && i < 3; i++ {
		out = append(out, candidates[i].name)
	}
	return out
}

// Hint renders Closest as " (did you mean x?)", or "" when nothing is close
func Hint(unknown string, valid []string) string {
	c := Closest(unknown, valid)
	switch len(c) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf(" (did you mean %s?)", c[0])
	default:
		return fmt.Sprintf(" (did you mean one of %s?)", strings.Join(c, ", "))
	}
}
