package index

import (
	"math"
	"sort"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/core/ports"
)

// DenseBuilder constructs a TF-IDF vector space over one chunk corpus.
// Vectors are L2-normalized, so the inner product used at rank time equals
// cosine similarity and scores stay comparable across chunks of different
// length.
type DenseBuilder struct{}

func NewDenseBuilder() DenseBuilder {
	return DenseBuilder{}
}

func (DenseBuilder) Build(chunks []domain.TextChunk) ports.Ranker {
	ix := &denseIndex{
		chunks:  chunks,
		idf:     make(map[string]float64),
		vectors: make([]map[string]float64, len(chunks)),
	}
	if len(chunks) == 0 {
		return ix
	}

	counts := make([]map[string]int, len(chunks))
	docFreq := make(map[string]int)
	for i, chunk := range chunks {
		counts[i] = termCounts(tokenize(chunk.Text))
		for term := range counts[i] {
			docFreq[term]++
		}
	}

	// Smoothed idf: ln((1+N)/(1+df)) + 1, never negative or zero.
	n := float64(len(chunks))
	for term, df := range docFreq {
		ix.idf[term] = math.Log((1+n)/(1+float64(df))) + 1
	}

	for i, tf := range counts {
		ix.vectors[i] = normalizeL2(weigh(tf, ix.idf))
	}
	return ix
}

type denseIndex struct {
	chunks  []domain.TextChunk
	idf     map[string]float64
	vectors []map[string]float64
}

// Rank projects the query into the corpus vector space and orders chunks by
// cosine similarity, descending. Zero-similarity chunks are omitted; ties
// keep original corpus order.
func (ix *denseIndex) Rank(query string, topN int) []domain.Candidate {
	if len(ix.chunks) == 0 || topN <= 0 {
		return nil
	}

	queryVec := normalizeL2(weigh(termCounts(tokenize(query)), ix.idf))
	if len(queryVec) == 0 {
		return nil
	}

	type scored struct {
		pos   int
		score float64
	}
	hits := make([]scored, 0, len(ix.chunks))
	for i, vec := range ix.vectors {
		s := dot(queryVec, vec)
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

// weigh drops terms absent from the corpus vocabulary, matching how a
// fitted vectorizer transforms unseen query terms.
func weigh(tf map[string]int, idf map[string]float64) map[string]float64 {
	if len(tf) == 0 {
		return nil
	}
	out := make(map[string]float64, len(tf))
	for term, count := range tf {
		w, ok := idf[term]
		if !ok {
			continue
		}
		out[term] = float64(count) * w
	}
	return out
}

func normalizeL2(vec map[string]float64) map[string]float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return nil
	}
	norm := math.Sqrt(sum)
	for term, v := range vec {
		vec[term] = v / norm
	}
	return vec
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var out float64
	for term, v := range a {
		out += v * b[term]
	}
	return out
}
