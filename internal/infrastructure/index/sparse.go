package index

import (
	"math"
	"sort"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/core/ports"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// SparseBuilder constructs a BM25 lexical index over one chunk corpus. It
// recovers exact-keyword matches (drug names, dosage numbers) that the
// vector space may under-weight: saturating term-frequency contribution,
// length normalization, and a reward for rare informative terms.
type SparseBuilder struct{}

func NewSparseBuilder() SparseBuilder {
	return SparseBuilder{}
}

func (SparseBuilder) Build(chunks []domain.TextChunk) ports.Ranker {
	ix := &sparseIndex{
		chunks: chunks,
		counts: make([]map[string]int, len(chunks)),
		lens:   make([]float64, len(chunks)),
		idf:    make(map[string]float64),
	}
	if len(chunks) == 0 {
		return ix
	}

	docFreq := make(map[string]int)
	var totalLen float64
	for i, chunk := range chunks {
		tokens := tokenize(chunk.Text)
		ix.counts[i] = termCounts(tokens)
		ix.lens[i] = float64(len(tokens))
		totalLen += ix.lens[i]
		for term := range ix.counts[i] {
			docFreq[term]++
		}
	}
	ix.avgLen = totalLen / float64(len(chunks))

	// Non-negative idf variant; the classic Robertson form can go negative
	// for terms in more than half the corpus.
	n := float64(len(chunks))
	for term, df := range docFreq {
		ix.idf[term] = math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
	}
	return ix
}

type sparseIndex struct {
	chunks []domain.TextChunk
	counts []map[string]int
	lens   []float64
	avgLen float64
	idf    map[string]float64
}

// Rank scores every chunk against the query terms and orders descending.
// Zero-score chunks are omitted; ties keep original corpus order.
func (ix *sparseIndex) Rank(query string, topN int) []domain.Candidate {
	if len(ix.chunks) == 0 || topN <= 0 {
		return nil
	}
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	type scored struct {
		pos   int
		score float64
	}
	hits := make([]scored, 0, len(ix.chunks))
	for i := range ix.chunks {
		s := ix.score(queryTerms, i)
		if s > 0 {
			hits = append(hits, scored{pos: i, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}

	out := make([]domain.Candidate, 0, len(hits))
	for rank, h := range hits {
		out = append(out, domain.Candidate{
			ChunkID: ix.chunks[h.pos].ChunkID,
			Rank:    rank + 1,
			Score:   h.score,
		})
	}
	return out
}

func (ix *sparseIndex) score(queryTerms []string, pos int) float64 {
	counts := ix.counts[pos]
	if len(counts) == 0 {
		return 0
	}
	lenNorm := 1 - bm25B + bm25B*ix.lens[pos]/ix.avgLen

	var out float64
	for _, term := range queryTerms {
		tf := float64(counts[term])
		if tf == 0 {
			continue
		}
		out += ix.idf[term] * (tf * (bm25K1 + 1)) / (tf + bm25K1*lenNorm)
	}
	return out
}
