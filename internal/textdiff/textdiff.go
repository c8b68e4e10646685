// Package textdiff compares two texts as bags of words.
//
// Word order and position are ignored: each text becomes a word multiset and
// the similarity is the Dice coefficient of the two multisets expressed as a
// percentage. No alignment or edit script is produced.
package textdiff

import (
	"math"
	"strings"

	"github.com/zombar/textpipeline/internal/models"
)

// Compare returns the bag similarity of a and b together with the words that
// were added (only in b), removed (only in a) and unchanged (in both).
func Compare(a, b string) models.TextDiffResult {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)

	countsA := make(map[string]int, len(wordsA))
	countsB := make(map[string]int, len(wordsB))

	// distinct words in first-occurrence order, a before b
	var order []string
	seen := make(map[string]bool, len(wordsA)+len(wordsB))
	for _, w := range wordsA {
		countsA[w]++
		if !seen[w] {
			seen[w] = true
			order = append(order, w)
		}
	}
	for _, w := range wordsB {
		countsB[w]++
		if !seen[w] {
			seen[w] = true
			order = append(order, w)
		}
	}

	result := models.TextDiffResult{
		Added:            []string{},
		Removed:          []string{},
		Unchanged:        []string{},
		CommonSubstrings: []string{},
	}

	for _, w := range order {
		ca, cb := countsA[w], countsB[w]
		shared := min(ca, cb)
		result.Unchanged = appendN(result.Unchanged, w, shared)
		if cb > ca {
			result.Added = appendN(result.Added, w, cb-ca)
		}
		if ca > cb {
			result.Removed = appendN(result.Removed, w, ca-cb)
		}
	}

	result.AddedCount = len(result.Added)
	result.RemovedCount = len(result.Removed)
	result.UnchangedCount = len(result.Unchanged)

	total := len(wordsA) + len(wordsB)
	if total > 0 {
		similarity := 200 * float64(result.UnchangedCount) / float64(total)
		result.Similarity = math.Round(similarity*100) / 100
	}

	return result
}

func appendN(dst []string, w string, n int) []string {
	for i := 0; i < n; i++ {
		dst = append(dst, w)
	}
	return dst
}
