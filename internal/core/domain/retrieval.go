package domain

// RetrievalMode selects which candidate lists feed the fused ranking.
type RetrievalMode string

const (
	ModeHybrid RetrievalMode = "hybrid"
	ModeDense  RetrievalMode = "dense"
	ModeSparse RetrievalMode = "sparse"
)

// NormalizeMode maps free-form input to a supported retrieval mode,
// defaulting to hybrid.
func NormalizeMode(s string) RetrievalMode {
	switch RetrievalMode(s) {
	case ModeDense:
		return ModeDense
	case ModeSparse:
		return ModeSparse
	default:
		return ModeHybrid
	}
}

// Candidate is one entry of a ranker's ordered output. Rank is 1-based and
// unique within a list; Score is ranker-specific and not comparable across
// rankers.
type Candidate struct {
	ChunkID string  `json:"chunk_id"`
	Rank    int     `json:"rank"`
	Score   float64 `json:"raw_score"`
}

// SourceRanks records where a fused chunk ranked in each input list.
// Zero means the chunk was absent from that list.
type SourceRanks struct {
	Dense  int `json:"dense"`
	Sparse int `json:"sparse"`
}

// InBoth reports whether the chunk appeared in both candidate lists.
func (s SourceRanks) InBoth() bool {
	return s.Dense > 0 && s.Sparse > 0
}

// FusedResult is one entry of the fused evidence set.
type FusedResult struct {
	Chunk       TextChunk   `json:"chunk"`
	FusionScore float64     `json:"fusion_score"`
	SourceRanks SourceRanks `json:"source_ranks"`
}

// AnswerMethod says how the answer text was produced.
type AnswerMethod string

const (
	MethodGenerated  AnswerMethod = "generated"
	MethodExtractive AnswerMethod = "extractive"
	MethodRefused    AnswerMethod = "refused"
)

// RefusalText is the fixed refusal phrase. The generation service is
// instructed to emit it verbatim when evidence is insufficient, and the
// citation enforcer exempts it from the at-least-one-citation rule.
const RefusalText = "Not enough evidence in the retrieved context."

// Answer is the terminal result of one query. Citations are chunk ids and
// always a subset of the query's fused evidence set. GeneratorUsed is true
// whenever the generation service responded, even if its output was a
// refusal or was discarded for citation violations.
type Answer struct {
	Text          string        `json:"text"`
	Citations     []string      `json:"citations"`
	Method        AnswerMethod  `json:"method"`
	Confidence    float64       `json:"confidence"`
	Evidence      []FusedResult `json:"evidence"`
	GeneratorUsed bool          `json:"generator_used"`
}

// QueryOptions are per-request overrides for the ask pipeline.
type QueryOptions struct {
	Mode RetrievalMode
	TopK int
}
