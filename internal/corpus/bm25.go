// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pdiddy/guardrag/pkg/types"
)

// BM25 Okapi parameters. Standard values; tuning has not been needed on
// corpora of the size this backend is meant for.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BM25 is an in-memory retriever backend for small corpora and tests.
// Documents are tokenized at Add time; Retrieve scores with Okapi BM25.
type BM25 struct {
	mu        sync.RWMutex
	docs      []types.Document
	tokens    [][]string
	docFreq   map[string]int
	totalLen  int
}

// NewBM25 builds an index over the given documents. A nil slice gives
// an empty index that can be populated with Add.
func NewBM25(docs []types.Document) *BM25 {
	b := &BM25{docFreq: make(map[string]int)}
	for _, d := range docs {
		b.Add(d)
	}
	return b
}

// Add indexes one document.
func (b *BM25) Add(doc types.Document) {
	toks := tokenize(doc.Text)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = append(b.docs, doc)
	b.tokens = append(b.tokens, toks)
	b.totalLen += len(toks)
	seen := make(map[string]bool, len(toks))
	for _, t := range toks {
		if !seen[t] {
			seen[t] = true
			b.docFreq[t]++
		}
	}
}

// Len returns the number of indexed documents.
func (b *BM25) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

// Retrieve scores all indexed documents against the query and returns
// the topK best, honoring the allowlist and time window (R2.1-R2.3).
func (b *BM25) Retrieve(ctx context.Context, query string, topK int, c types.Constraints) ([]types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qToks := tokenize(query)
	if len(qToks) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 8
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.docs)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(b.totalLen) / float64(n)
	now := time.Now().UTC()

	type scored struct {
		idx   int
		score float64
	}
	var results []scored
	for i, d := range b.docs {
		if !allowed(d.Source, c.SourceAllowlist) {
			continue
		}
		if !withinWindow(d.CreatedAt, c.TimeWindowDays, now) {
			continue
		}
		s := b.score(qToks, i, avgLen, n)
		if s > 0 {
			results = append(results, scored{idx: i, score: s})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]types.Document, 0, len(results))
	for rank, r := range results {
		d := b.docs[r.idx]
		d.RetrievalScore = r.score
		d.Rank = rank + 1
		out = append(out, d)
	}
	return out, nil
}

func (b *BM25) score(qToks []string, docIdx int, avgLen float64, n int) float64 {
	toks := b.tokens[docIdx]
	docLen := float64(len(toks))
	tf := make(map[string]int, len(toks))
	for _, t := range toks {
		tf[t]++
	}

	var total float64
	for _, q := range qToks {
		df := b.docFreq[q]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		f := float64(tf[q])
		total += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
	}
	return total
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
