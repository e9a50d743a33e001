package typoutil

// Distance computes the Damerau-Levenshtein distance between two strings:
// the minimum number of insertions, deletions, substitutions or adjacent
// transpositions turning a into b. Runes, not bytes, are compared.
//
// The computation stops early once the distance is known to exceed
// maxDistance and returns maxDistance+1. A negative maxDistance disables the limit.
func Distance(a, b string, maxDistance int) int {
	runesA := []rune(a)
	runesB := []rune(b)
	lenA, lenB := len(runesA), len(runesB)

	if maxDistance < 0 {
		maxDistance = lenA + lenB
	}
	if abs(lenA-lenB) > maxDistance {
		return maxDistance + 1
	}
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// Three rows: i-2 is needed for transpositions
	prevPrev := make([]int, lenB+1)
	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i
		rowMin := i

		for j := 1; j <= lenB; j++ {
			cost := 1
			if runesA[i-1] == runesB[j-1] {
				cost = 0
			}

			d := min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && runesA[i-1] == runesB[j-2] && runesA[i-2] == runesB[j-1] {
				d = min(d, prevPrev[j-2]+cost)
			}
			curr[j] = d
			rowMin = min(rowMin, d)
		}

		if rowMin > maxDistance {
			return maxDistance + 1
		}
		prevPrev, prev, curr = prev, curr, prevPrev
	}

	if prev[lenB] > maxDistance {
		return maxDistance + 1
	}
	return prev[lenB]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
