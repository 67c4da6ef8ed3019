package sql

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// suggest returns the candidate closest to name, or "" when nothing is close
// enough to be a plausible typo. Singular/plural forms win over edit distance.
func suggest(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	lname := strings.ToLower(name)
	plural := strings.ToLower(inflection.Plural(lname))
	singular := strings.ToLower(inflection.Singular(lname))
	for _, c := range sorted {
		lc := strings.ToLower(c)
		if lc == lname {
			continue
		}
		if lc == plural || lc == singular {
			return c
		}
	}

	best, bestDist := "", -1
	for _, c := range sorted {
		lc := strings.ToLower(c)
		if lc == lname {
			continue
		}
		d := levenshtein(lname, lc)
		if d > maxSuggestDistance(lname) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if best != "" {
		return best
	}

	if len(lname) >= 4 {
		for _, c := range sorted {
			lc := strings.ToLower(c)
			if lc != lname && (strings.HasPrefix(lc, lname) || strings.HasPrefix(lname, lc)) {
				return c
			}
		}
	}
	return ""
}

func maxSuggestDistance(name string) int {
	switch {
	case len(name) <= 3:
		return 1
	case len(name) <= 8:
		return 2
	default:
		return 3
	}
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
