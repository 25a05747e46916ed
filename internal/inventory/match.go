package inventory

import (
	"regexp"
	"strings"
)

// MergeThreshold is the minimum similarity for a nota line to be merged into
// an existing item instead of creating a new one.
const MergeThreshold = 0.70

const containmentScore = 0.85

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName lowercases s and reduces it to space separated alphanumerics.
func NormalizeName(s string) string {
	s = nonAlnumRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(s)
}

// Similarity scores two item names between 0 and 1. Equal names score 1, a
// name contained in the other scores containmentScore, anything else scores
// the token overlap |A∩B| / max(|A|,|B|).
func Similarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if containsWords(na, nb) || containsWords(nb, na) {
		return containmentScore
	}
	return tokenOverlap(strings.Fields(na), strings.Fields(nb))
}

// Similar reports whether a and b name the same stock item
func Similar(a, b string) bool {
	return Similarity(a, b) >= MergeThreshold
}

// containsWords reports whether needle occurs in hay on word boundaries, so
// "teh" does not match "tehnik".
func containsWords(hay, needle string) bool {
	return strings.Contains(" "+hay+" ", " "+needle+" ")
}

func tokenOverlap(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	seen := make(map[string]bool, len(b))
	common := 0
	for _, t := range b {
		if set[t] && !seen[t] {
			common++
		}
		seen[t] = true
	}
	denom := max(len(set), len(seen))
	if denom == 0 {
		return 0
	}
	return float64(common) / float64(denom)
}

// bestMatch returns the index of the most similar candidate at or above
// MergeThreshold, or -1. Candidates stocked in a different unit never match:
// 500 gram of sugar is not 500 kg.
func bestMatch(name, unit string, candidates []Item) int {
	best, bestScore := -1, 0.0
	for i := range candidates {
		if !sameUnit(unit, candidates[i].Unit) {
			continue
		}
		score := Similarity(name, candidates[i].Name)
		if score >= MergeThreshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// sameUnit treats a missing unit as compatible with any other.
func sameUnit(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	return a == "" || b == "" || a == b
}
