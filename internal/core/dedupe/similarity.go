package dedupe

import "strings"

// Similarity scores two insight statements in [0,1] using Jaccard overlap
// of their normalized token sets. The measure is symmetric and
// deterministic, so raising the threshold can only shrink the candidate
// set.
func Similarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func tokenize(text string) map[string]bool {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}

	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(sb.String()) {
		tokens[tok] = true
	}
	return tokens
}
