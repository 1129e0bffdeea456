package ports

import (
	"context"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

// EvidenceProvider turns a user query into freshly fetched source records.
// An empty result is a valid response, not an error.
type EvidenceProvider interface {
	Fetch(ctx context.Context, query string) ([]domain.EvidenceRecord, error)
}

// DrugResolver canonicalizes a free-text drug name. Resolution is best
// effort: on any upstream failure it returns the unresolved passthrough
// identity rather than an error.
type DrugResolver interface {
	Resolve(ctx context.Context, name string) domain.DrugIdentity
}

// Chunker splits one record field into retrieval units with provenance ids.
type Chunker interface {
	Split(docID, field, text string) []domain.TextChunk
}

// Ranker is a single-query ranking over one chunk corpus. Implementations
// hold no state beyond that corpus and are discarded at query end.
type Ranker interface {
	Rank(query string, topN int) []domain.Candidate
}

// IndexBuilder constructs a per-query, in-memory ranker over a chunk corpus.
// Builders themselves are stateless, so concurrent queries never share
// index state.
type IndexBuilder interface {
	Build(chunks []domain.TextChunk) Ranker
}

// AnswerGenerator is the optional external generation service.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TelemetrySink accepts write-once interaction records. Failures are a
// best-effort side channel and must never affect the returned answer.
type TelemetrySink interface {
	Record(ctx context.Context, rec domain.InteractionRecord) error
}

// InteractionStore persists interaction records (append-only).
type InteractionStore interface {
	Insert(ctx context.Context, rec domain.InteractionRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.InteractionRecord, error)
}
