package parse

import (
	"math"
	"strings"

	"github.com/agext/levenshtein"
)

// Duplicate-detection thresholds.
const (
	iouThreshold        = 0.5
	similarityThreshold = 0.85
	amountEpsilon       = 0.01
)

// Dedupe folds the cross-page candidate list into a stable,
// first-occurrence-ordered list of unique items. A candidate is a
// duplicate of an accepted item when their boxes overlap with IoU > 0.5,
// or when their names are > 85% similar (case-insensitive normalized
// edit distance) and their amounts differ by less than 0.01. The first
// signal to fire short-circuits.
//
// O(n²) in candidate count; per-document item counts are tens, not
// thousands. The input is not mutated.
func Dedupe(candidates []BillItem) []BillItem {
	unique := make([]BillItem, 0, len(candidates))

	for _, item := range candidates {
		duplicate := false
		for _, u := range unique {
			if item.BBox != nil && u.BBox != nil && item.BBox.IoU(*u.BBox) > iouThreshold {
				duplicate = true
				break
			}
			if nameSimilarity(item.ItemName, u.ItemName) > similarityThreshold &&
				amountsClose(item.ItemAmount, u.ItemAmount) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, item)
		}
	}
	return unique
}

// nameSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)), compared
// case-insensitively. Two empty names count as identical.
func nameSimilarity(a, b string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.Distance(strings.ToLower(a), strings.ToLower(b), nil)
	return 1 - float64(dist)/float64(maxLen)
}

func amountsClose(a, b *float64) bool {
	if a == nil || b == nil {
		return false
	}
	return math.Abs(*a-*b) < amountEpsilon
}
