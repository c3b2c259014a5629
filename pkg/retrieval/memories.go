package retrieval

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// RankMemories scores items by the share of query terms found in their values and
// returns at most limit of them, best first. Items matching no term are dropped.
// An empty query keeps every item, most recent first.
func RankMemories(items []domain.MemoryItem, query string, limit int) []domain.MemoryItem {
	terms := Tokenize(query)
	out := make([]domain.MemoryItem, 0, len(items))
	for _, item := range items {
		item.Score = overlap(terms, item.Value)
		if len(terms) > 0 && item.Score == 0 {
			continue
		}
		item.Value = maps.Clone(item.Value)
		out = append(out, item)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		if !out[a].UpdatedAt.Equal(out[b].UpdatedAt) {
			return out[a].UpdatedAt.After(out[b].UpdatedAt)
		}
		return out[a].Key < out[b].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func overlap(terms []string, value map[string]any) float64 {
	if len(terms) == 0 {
		return 0
	}
	var sb strings.Builder
	for _, v := range value {
		fmt.Fprintf(&sb, "%v ", v)
	}
	present := make(map[string]bool)
	for _, tok := range Tokenize(sb.String()) {
		present[tok] = true
	}
	hits := 0
	for _, t := range terms {
		if present[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
