package usecase

import (
	"sort"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

const defaultRRFK = 60

// fuseRRF merges the dense and sparse candidate lists with reciprocal rank
// fusion: every list a chunk appears in contributes 1/(k+rank). The raw
// ranker scores never mix, so the two scales need not be comparable.
//
// Ordering is by fusion score descending; on equal score a chunk present in
// both lists beats one present in a single list, then original corpus order
// decides. The output holds no duplicates and is a subset of the union of
// the inputs, trimmed to topK.
func fuseRRF(dense, sparse []domain.Candidate, corpus map[string]domain.TextChunk, order map[string]int, rrfK, topK int) []domain.FusedResult {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*domain.FusedResult, len(dense)+len(sparse))
	ensure := func(chunkID string) *domain.FusedResult {
		if fr, ok := acc[chunkID]; ok {
			return fr
		}
		fr := &domain.FusedResult{Chunk: corpus[chunkID]}
		acc[chunkID] = fr
		return fr
	}
	for _, c := range dense {
		fr := ensure(c.ChunkID)
		fr.FusionScore += 1.0 / float64(rrfK+c.Rank)
		fr.SourceRanks.Dense = c.Rank
	}
	for _, c := range sparse {
		fr := ensure(c.ChunkID)
		fr.FusionScore += 1.0 / float64(rrfK+c.Rank)
		fr.SourceRanks.Sparse = c.Rank
	}

	out := make([]domain.FusedResult, 0, len(acc))
	for _, fr := range acc {
		out = append(out, *fr)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusionScore != out[j].FusionScore {
			return out[i].FusionScore > out[j].FusionScore
		}
		bi, bj := out[i].SourceRanks.InBoth(), out[j].SourceRanks.InBoth()
		if bi != bj {
			return bi
		}
		return order[out[i].Chunk.ChunkID] < order[out[j].Chunk.ChunkID]
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
