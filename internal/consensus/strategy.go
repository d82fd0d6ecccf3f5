package consensus

import (
	"strings"
	"unicode"

	"github.com/harrison/ensemble/internal/models"
	"github.com/harrison/ensemble/internal/similarity"
)

// decision is the outcome of one voting strategy over the successful results.
type decision struct {
	ok         bool
	output     string
	confidence float64
	agreement  float64
}

// voteMajority clusters outputs by token similarity and picks the most confident
// member of the largest cluster. Ties go to the earliest provider.
func voteMajority(results []models.ProviderResult, threshold float64, sim similarity.Similarity) decision {
	outputs := make([]string, len(results))
	for i, r := range results {
		outputs[i] = r.Output
	}

	clusters := similarity.Cluster(outputs, threshold, sim)
	var largest []int
	for _, c := range clusters {
		if len(c) > len(largest) {
			largest = c
		}
	}

	best := largest[0]
	for _, idx := range largest[1:] {
		if results[idx].Confidence > results[best].Confidence {
			best = idx
		}
	}

	agreement := float64(len(largest)) / float64(len(results))
	return decision{
		ok:         true,
		output:     results[best].Output,
		confidence: results[best].Confidence * (0.5 + 0.5*agreement),
		agreement:  agreement,
	}
}

// voteWeighted picks the result maximising weight x confidence.
func voteWeighted(results []models.ProviderResult, weight func(provider string) float64) decision {
	best, bestScore := 0, -1.0
	for i, r := range results {
		if score := weight(r.Provider) * r.Confidence; score > bestScore {
			best, bestScore = i, score
		}
	}
	return decision{
		ok:         true,
		output:     results[best].Output,
		confidence: results[best].Confidence,
		agreement:  1 / float64(len(results)),
	}
}

// voteUnanimous succeeds only when every output normalizes to the same prefix.
func voteUnanimous(results []models.ProviderResult, prefixLength int) decision {
	want := normalize(results[0].Output, prefixLength)
	var total float64
	for _, r := range results {
		if normalize(r.Output, prefixLength) != want {
			return decision{}
		}
		total += r.Confidence
	}
	return decision{
		ok:         true,
		output:     results[0].Output,
		confidence: total / float64(len(results)),
		agreement:  1,
	}
}

// voteBestOfN picks the single most confident result.
func voteBestOfN(results []models.ProviderResult) decision {
	best := 0
	for i, r := range results {
		if r.Confidence > results[best].Confidence {
			best = i
		}
	}
	return decision{
		ok:         true,
		output:     results[best].Output,
		confidence: results[best].Confidence,
		agreement:  1 / float64(len(results)),
	}
}

// normalize lowercases, strips punctuation, collapses whitespace and keeps
// at most prefixLength runes.
func normalize(s string, prefixLength int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if prefixLength > 0 {
		if runes := []rune(s); len(runes) > prefixLength {
			s = string(runes[:prefixLength])
		}
	}
	return s
}
