// Package similarity holds the string-distance primitives shared by the
// catalog disambiguation and the barcode name reduction.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
)

var levenshtein = metrics.NewLevenshtein()

// Distance is the Levenshtein edit distance between a and b, counted in runes.
// The comparison is case-sensitive.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b)
}

// Score rates how well segment matches text. Exact containment scores the
// segment length so longer exact matches win; otherwise the score is the
// longer length minus the edit distance.
func Score(segment, text string) int {
	segLen := utf8.RuneCountInString(segment)
	if strings.Contains(text, segment) {
		return segLen
	}
	return max(segLen, utf8.RuneCountInString(text)) - Distance(segment, text)
}

// BestMatch returns the index of the candidate closest to target, comparing
// lower-cased strings. Ties keep the earliest candidate. -1 when empty.
func BestMatch(target string, candidates []string) int {
	best, bestDist := -1, 0
	target = strings.ToLower(target)
	for i, c := range candidates {
		d := Distance(target, strings.ToLower(c))
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Closest is BestMatch over arbitrary values, using title to extract the
// string compared against target.
func Closest[T any](target string, items []T, title func(T) string) (T, bool) {
	var zero T
	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = title(it)
	}
	idx := BestMatch(target, titles)
	if idx < 0 {
		return zero, false
	}
	return items[idx], true
}
