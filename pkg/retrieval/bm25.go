// Package retrieval ranks tenant content for retrieval-augmented generation.
package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Index is an Okapi BM25 index over a fixed corpus.
type Index struct {
	k1, b  float64
	docs   [][]string
	tf     []map[string]int
	df     map[string]int
	avgLen float64
}

// NewIndex indexes the corpus with the default parameters.
func NewIndex(corpus []string) *Index {
	idx := &Index{
		k1:   DefaultK1,
		b:    DefaultB,
		docs: make([][]string, len(corpus)),
		tf:   make([]map[string]int, len(corpus)),
		df:   make(map[string]int),
	}
	total := 0
	for i, text := range corpus {
		tokens := Tokenize(text)
		idx.docs[i] = tokens
		total += len(tokens)

		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		idx.tf[i] = freq
		for tok := range freq {
			idx.df[tok]++
		}
	}
	if len(corpus) > 0 {
		idx.avgLen = float64(total) / float64(len(corpus))
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.docs) }

// Score computes the BM25 score of document i for the query.
func (idx *Index) Score(i int, query []string) float64 {
	n := float64(len(idx.docs))
	docLen := float64(len(idx.docs[i]))
	var score float64
	for _, term := range query {
		f := float64(idx.tf[i][term])
		if f == 0 {
			continue
		}
		df := float64(idx.df[term])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		norm := 1 - idx.b
		if idx.avgLen > 0 {
			norm += idx.b * docLen / idx.avgLen
		}
		score += idf * f * (idx.k1 + 1) / (f + idx.k1*norm)
	}
	return score
}

// Hit is a ranked document.
type Hit struct {
	Index int
	Score float64
}

// Top returns up to k documents with a positive score, best first.
// Ties keep corpus order.
func (idx *Index) Top(query string, k int) []Hit {
	terms := Tokenize(query)
	var hits []Hit
	for i := range idx.docs {
		if s := idx.Score(i, terms); s > 0 {
			hits = append(hits, Hit{Index: i, Score: s})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
