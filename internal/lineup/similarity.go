package lineup

import "strings"

// Similarity computes a Dice-coefficient bigram similarity between two
// names in [0, 1]. Comparison is case-insensitive on canonical forms.
func Similarity(a, b string) float64 {
	a = strings.ToLower(Canonicalize(a))
	b = strings.ToLower(Canonicalize(b))
	if a == b {
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigramsA := bigrams(a)
	bigramsB := bigrams(b)

	var shared int
	for bg, n := range bigramsA {
		if m, ok := bigramsB[bg]; ok {
			shared += min(n, m)
		}
	}

	var totalA, totalB int
	for _, n := range bigramsA {
		totalA += n
	}
	for _, n := range bigramsB {
		totalB += n
	}
	return 2 * float64(shared) / float64(totalA+totalB)
}

// bigrams counts adjacent rune pairs.
func bigrams(s string) map[string]int {
	runes := []rune(s)
	counts := make(map[string]int, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		counts[string(runes[i:i+2])]++
	}
	return counts
}
