// Package typoutil finds indexed terms close to a misspelled query term.
package typoutil

import (
	"sort"
	"unicode/utf8"
)

// DefaultMaxSuggestions is the number of suggestions returned per term.
const DefaultMaxSuggestions = 3

// MaxDistanceFor returns the edit distance tolerated for term.
// Short terms get no tolerance: almost every three-letter word is one edit
// away from another.
func MaxDistanceFor(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n >= 7:
		return 2
	case n >= 4:
		return 1
	default:
		return 0
	}
}

// Suggest returns up to maxResults candidates within MaxDistanceFor(term)
// edits of term, closest first. Ties are broken by frequency (higher first,
// when freq is non-nil) and then alphabetically. term itself is never suggested.
func Suggest(term string, candidates []string, freq func(string) int, maxResults int) []string {
	maxDistance := MaxDistanceFor(term)
	if maxDistance == 0 || maxResults <= 0 {
		return []string{}
	}

	type match struct {
		term     string
		distance int
		weight   int
	}

	termLen := utf8.RuneCountInString(term)
	var matches []match
	for _, candidate := range candidates {
		if candidate == term || abs(utf8.RuneCountInString(candidate)-termLen) > maxDistance {
			continue
		}
		d := Distance(term, candidate, maxDistance)
		if d == 0 || d > maxDistance {
			continue
		}
		m := match{term: candidate, distance: d}
		if freq != nil {
			m.weight = freq(candidate)
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		if matches[i].weight != matches[j].weight {
			return matches[i].weight > matches[j].weight
		}
		return matches[i].term < matches[j].term
	})

	out := make([]string, 0, min(len(matches), maxResults))
	for i := 0; i < len(matches) && i < maxResults; i++ {
		out = append(out, matches[i].term)
	}
	return out
}
