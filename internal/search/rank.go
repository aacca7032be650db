package search

import "sort"

// Score returns the Jaccard similarity between the query tokens and the
// tokens of a folded document: |Q ∩ D| / |Q ∪ D|. It is 0 when either side
// is empty.
func Score(query []string, doc string) float64 {
	if len(query) == 0 {
		return 0
	}
	dTokens := tokenSet(wordRE.FindAllString(doc, -1))
	if len(dTokens) == 0 {
		return 0
	}
	qTokens := tokenSet(query)
	over := 0
	for k := range qTokens {
		if _, ok := dTokens[k]; ok {
			over++
		}
	}
	union := len(qTokens) + len(dTokens) - over
	if over == 0 || union <= 0 {
		return 0
	}
	return float64(over) / float64(union)
}

// Rank stably reorders items by descending Score of doc(item) against the
// query. Ties keep their incoming order, so callers control the secondary
// ordering (e.g. most recent first).
func Rank[T any](items []T, query []string, doc func(T) string) {
	if len(query) == 0 || len(items) < 2 {
		return
	}
	scores := make(map[int]float64, len(items))
	idx := make([]int, len(items))
	for i := range items {
		idx[i] = i
		scores[i] = Score(query, doc(items[i]))
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

func tokenSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}
