package index

import (
	"testing"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

func TestSparseRankEmptyCorpus(t *testing.T) {
	ranker := NewSparseBuilder().Build(nil)
	if got := ranker.Rank("ibuprofen", 10); got != nil {
		t.Fatalf("expected nil for empty corpus, got %d candidates", len(got))
	}
}

func TestSparseRankExactKeywordRecovery(t *testing.T) {
	corpus := []domain.TextChunk{
		chunk("c1", "general precautions apply to all patients taking this medication daily"),
		chunk("c2", "do not exceed 3200 mg of ibuprofen in a 24 hour period"),
		chunk("c3", "common side effects include nausea and dizziness"),
	}
	got := NewSparseBuilder().Build(corpus).Rank("maximum ibuprofen 3200 mg", 10)
	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	if got[0].ChunkID != "c2" {
		t.Fatalf("expected exact-term chunk c2 first, got %s", got[0].ChunkID)
	}
}

func TestSparseRankRewardsRareTerms(t *testing.T) {
	// "patients" appears everywhere, "anaphylaxis" once.
	corpus := []domain.TextChunk{
		chunk("c1", "patients should be monitored"),
		chunk("c2", "patients may develop anaphylaxis"),
		chunk("c3", "patients respond well generally"),
	}
	got := NewSparseBuilder().Build(corpus).Rank("anaphylaxis patients", 10)
	if len(got) == 0 || got[0].ChunkID != "c2" {
		t.Fatalf("expected rare-term chunk c2 first, got %+v", got)
	}
}

func TestSparseRankTermFrequencySaturates(t *testing.T) {
	corpus := []domain.TextChunk{
		chunk("c1", "bleeding bleeding bleeding bleeding bleeding bleeding bleeding bleeding"),
		chunk("c2", "bleeding risk described once here with other words padding padding"),
	}
	got := NewSparseBuilder().Build(corpus).Rank("bleeding", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	// Repetition still wins but by a bounded margin, not linearly.
	if got[0].ChunkID != "c1" {
		t.Fatalf("expected c1 first, got %s", got[0].ChunkID)
	}
	if got[0].Score > got[1].Score*(bm25K1+1) {
		t.Fatalf("term frequency contribution did not saturate: %f vs %f", got[0].Score, got[1].Score)
	}
}

func TestSparseRankTopNAndStableTies(t *testing.T) {
	corpus := []domain.TextChunk{
		chunk("c1", "alpha beta"),
		chunk("c2", "alpha beta"),
		chunk("c3", "alpha beta"),
	}
	got := NewSparseBuilder().Build(corpus).Rank("alpha", 2)
	if len(got) != 2 {
		t.Fatalf("expected topN=2, got %d", len(got))
	}
	if got[0].ChunkID != "c1" || got[1].ChunkID != "c2" {
		t.Fatalf("ties not broken by corpus order: %s, %s", got[0].ChunkID, got[1].ChunkID)
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Fatalf("ranks not 1-based sequential: %d, %d", got[0].Rank, got[1].Rank)
	}
}

func TestSparseRankNoMatchesIsEmpty(t *testing.T) {
	corpus := []domain.TextChunk{chunk("c1", "acetaminophen hepatotoxicity")}
	if got := NewSparseBuilder().Build(corpus).Rank("zzz qqq", 10); len(got) != 0 {
		t.Fatalf("expected no candidates, got %d", len(got))
	}
}
