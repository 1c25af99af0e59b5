package match

import "strings"

// Similarity computes the Sørensen–Dice coefficient over character bigrams,
// returning a score in [0,1]. Whitespace is ignored so that word order noise
// in statement particulars does not dominate the comparison.
func Similarity(a, b string) float64 {
	a = strings.ReplaceAll(a, " ", "")
	b = strings.ReplaceAll(b, " ", "")

	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}

	intersection := 0
	for i := 0; i < len(b)-1; i++ {
		pair := b[i : i+2]
		if bigrams[pair] > 0 {
			bigrams[pair]--
			intersection++
		}
	}

	return 2.0 * float64(intersection) / float64(len(a)+len(b)-2)
}
