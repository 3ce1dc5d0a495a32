package mind

import (
	"math"
	"strings"
	"unicode"
)

// Continuity squash: sigmoid centered at 0.6, steepness 8. Near-duplicate
// phrasing maps close to 1, unrelated text close to 0.
const (
	similaritySigmoidCenter = 0.6
	similaritySigmoidSteep  = 8.0
	similarityMinTokenLen   = 2
)

var similarityStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "be": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "it": {}, "and": {},
	"or": {}, "but": {}, "so": {}, "do": {}, "did": {}, "you": {}, "me": {},
	"my": {}, "we": {}, "he": {}, "she": {}, "they": {}, "this": {}, "that": {},
}

func similarityTokens(s string) map[string]int {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	counts := make(map[string]int, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < similarityMinTokenLen {
			continue
		}
		if _, stop := similarityStopWords[f]; stop {
			continue
		}
		counts[f]++
	}
	return counts
}

// TokenSimilarity returns the cosine similarity between the bag-of-tokens of
// two texts. Tokens shorter than 2 runes and stop words are excluded. Empty
// or degenerate inputs yield 0.
func TokenSimilarity(a, b string) float64 {
	ta, tb := similarityTokens(a), similarityTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var dot, na, nb float64
	for tok, ca := range ta {
		na += float64(ca * ca)
		if cb, ok := tb[tok]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range tb {
		nb += float64(cb * cb)
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ContinuitySimilarity squashes TokenSimilarity through the sigmoid so the
// continuity bonus only kicks in for genuinely related phrasing. Degenerate
// input stays exactly 0.
func ContinuitySimilarity(lastReply, incoming string) float64 {
	raw := TokenSimilarity(lastReply, incoming)
	if raw == 0 {
		return 0
	}
	return 1.0 / (1.0 + math.Exp(-similaritySigmoidSteep*(raw-similaritySigmoidCenter)))
}
