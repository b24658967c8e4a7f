package textutil

import "strings"

// Ratio returns 2*M/T where M is the number of runes in matching blocks and
// T the total rune count of both strings, compared case-insensitively.
// Matching blocks are found by repeatedly taking the longest common
// substring and recursing on both sides. Two empty strings are identical.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+size:], b[j+size:])
}

// longestMatch returns the earliest longest common substring of a and b.
func longestMatch(a, b []rune) (int, int, int) {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	bestI, bestJ, best := 0, 0, 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
					bestI, bestJ = i-best, j-best
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return bestI, bestJ, best
}

// Truncate returns at most n runes of s. n <= 0 returns s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
