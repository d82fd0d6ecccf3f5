// Package similarity measures lexical agreement between agent outputs.
package similarity

import (
	"strings"
	"unicode"
)

// MinTokenLength is the shortest token (in runes) that counts toward similarity.
const MinTokenLength = 3

// Similarity compares two texts and returns a score in [0,1].
type Similarity interface {
	Compare(a, b string) float64
}

// Jaccard is the token-set Jaccard index over lowercase tokens longer than two runes.
type Jaccard struct{}

// Compare implements Similarity.
func (Jaccard) Compare(a, b string) float64 {
	return JaccardIndex(Tokenize(a), Tokenize(b))
}

// Tokenize splits text on anything that is not a letter or digit, lowercases it,
// and keeps the distinct tokens of at least MinTokenLength runes.
func Tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= MinTokenLength {
			tokens[f] = struct{}{}
		}
	}
	return tokens
}

// JaccardIndex returns |a∩b| / |a∪b|. Two empty sets are identical (1);
// one empty set shares nothing (0).
func JaccardIndex(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
