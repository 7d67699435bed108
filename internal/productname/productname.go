// Package productname reduces the noisy titles returned by web search
// providers for a barcode to one clean product name.
package productname

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"shelf-meta-srv/internal/similarity"
)

const (
	// MinSegmentScore is the score a segment must exceed to beat the
	// frequent-words fallback.
	MinSegmentScore = 0.0

	minSegmentLen  = 5
	fallbackWords  = 4
	maxUpperAbbrev = 5
)

var (
	spaceRegex     = regexp.MustCompile(`\s+`)
	separatorRegex = regexp.MustCompile(`[-–—:()]`)
	casingSplit    = regexp.MustCompile(`[\s\-():]+`)

	minorWords = map[string]bool{
		"a": true, "an": true, "the": true, "and": true, "but": true, "or": true,
		"for": true, "nor": true, "on": true, "at": true, "to": true, "from": true,
		"by": true, "de": true, "la": true, "le": true, "au": true,
	}
)

// Extract picks the segment shared by most raw names, weighted by how often
// its words recur, and restores the casing observed in the inputs.
func Extract(rawNames []string) string {
	valid := make([]string, 0, len(rawNames))
	for _, n := range rawNames {
		if n != "" {
			valid = append(valid, n)
		}
	}

	switch len(valid) {
	case 0:
		return ""
	case 1:
		return capitalize(collapse(valid[0]), valid)
	}

	normalized := make([]string, len(valid))
	for i, n := range valid {
		normalized[i] = collapse(strings.ToLower(n))
	}

	freq := newFrequencies(normalized)

	var (
		best      string
		bestScore = MinSegmentScore
	)
	for i, name := range normalized {
		for _, segment := range segments(name) {
			if utf8.RuneCountInString(segment) < minSegmentLen {
				continue
			}

			total := 0
			for j, other := range normalized {
				if i != j {
					total += similarity.Score(segment, other)
				}
			}

			words := strings.Fields(segment)
			weight := 0
			for _, w := range words {
				if utf8.RuneCountInString(w) > 1 {
					weight += freq.count[w]
				}
			}

			score := float64(total) * (float64(weight) / float64(len(words)))
			if score > bestScore {
				best, bestScore = segment, score
			}
		}
	}

	if best == "" {
		best = strings.Join(freq.top(fallbackWords), " ")
	}

	return capitalize(best, valid)
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// segments splits on separators, then adds every multi-word run longer than
// five characters of the longer pieces, and finally the whole name.
func segments(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, piece := range separatorRegex.Split(text, -1) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		add(piece)

		words := strings.Fields(piece)
		if len(words) <= 2 {
			continue
		}
		for i := 0; i < len(words)-1; i++ {
			for j := i + 2; j <= len(words); j++ {
				sub := strings.Join(words[i:j], " ")
				if utf8.RuneCountInString(sub) > minSegmentLen {
					add(sub)
				}
			}
		}
	}

	add(text)
	return out
}

type frequencies struct {
	count map[string]int
	order []string
}

func newFrequencies(names []string) *frequencies {
	f := &frequencies{count: make(map[string]int)}
	for _, n := range names {
		for _, w := range strings.Fields(n) {
			if utf8.RuneCountInString(w) <= 1 {
				continue
			}
			if _, ok := f.count[w]; !ok {
				f.order = append(f.order, w)
			}
			f.count[w]++
		}
	}
	return f
}

// top returns up to n words longer than two characters, most frequent first,
// first-seen order on ties.
func (f *frequencies) top(n int) []string {
	words := make([]string, 0, len(f.order))
	for _, w := range f.order {
		if utf8.RuneCountInString(w) > 2 {
			words = append(words, w)
		}
	}
	sort.SliceStable(words, func(i, j int) bool {
		return f.count[words[i]] > f.count[words[j]]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

type casing struct {
	form  string
	count int
}

// capitalize rewrites each word with its most frequent casing across the raw
// names, falling back to title-case rules for words never observed.
func capitalize(name string, rawNames []string) string {
	variants := make(map[string][]casing)
	for _, raw := range rawNames {
		for _, w := range casingSplit.Split(raw, -1) {
			if utf8.RuneCountInString(w) <= 1 {
				continue
			}
			lower := strings.ToLower(w)
			forms := variants[lower]
			found := false
			for k := range forms {
				if forms[k].form == w {
					forms[k].count++
					found = true
					break
				}
			}
			if !found {
				forms = append(forms, casing{form: w, count: 1})
			}
			variants[lower] = forms
		}
	}

	words := strings.Split(name, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		lower := strings.ToLower(w)

		if forms, ok := variants[lower]; ok {
			best := forms[0]
			for _, f := range forms[1:] {
				if f.count > best.count {
					best = f
				}
			}
			words[i] = best.form
			continue
		}

		switch {
		case i == 0:
			words[i] = upperFirst(w)
		case minorWords[lower]:
			words[i] = lower
		case w == strings.ToUpper(w) && utf8.RuneCountInString(w) <= maxUpperAbbrev:
			// abbreviations and model numbers
		default:
			words[i] = upperFirst(lower)
		}
	}
	return strings.Join(words, " ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
