package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/core/ports"
)

// Options tune the retrieval pipeline. Zero values fall back to the
// defaults the engine was profiled with.
type Options struct {
	TopK          int
	CandidatePool int
	RRFK          int
	DefaultMode   domain.RetrievalMode
	QueryMaxLen   int
	PreviewMaxLen int
}

func (o Options) normalize() Options {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.CandidatePool < o.TopK {
		o.CandidatePool = o.TopK * 3
		if o.CandidatePool < 20 {
			o.CandidatePool = 20
		}
	}
	if o.RRFK <= 0 {
		o.RRFK = defaultRRFK
	}
	if o.DefaultMode == "" {
		o.DefaultMode = domain.ModeHybrid
	}
	if o.QueryMaxLen <= 0 {
		o.QueryMaxLen = 200
	}
	if o.PreviewMaxLen <= 0 {
		o.PreviewMaxLen = 150
	}
	return o
}

// AskUseCase is the per-query engine: fetch, chunk, rank twice, fuse,
// score, synthesize, emit telemetry. All index state is allocated inside
// Ask and unreachable once it returns, so concurrent queries share nothing.
type AskUseCase struct {
	provider      ports.EvidenceProvider
	chunker       ports.Chunker
	denseBuilder  ports.IndexBuilder
	sparseBuilder ports.IndexBuilder
	synthesizer   *AnswerSynthesizer
	sink          ports.TelemetrySink
	logger        *slog.Logger
	opts          Options
}

func NewAskUseCase(
	provider ports.EvidenceProvider,
	chunker ports.Chunker,
	denseBuilder ports.IndexBuilder,
	sparseBuilder ports.IndexBuilder,
	synthesizer *AnswerSynthesizer,
	sink ports.TelemetrySink,
	logger *slog.Logger,
	opts Options,
) *AskUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		provider:      provider,
		chunker:       chunker,
		denseBuilder:  denseBuilder,
		sparseBuilder: sparseBuilder,
		synthesizer:   synthesizer,
		sink:          sink,
		logger:        logger,
		opts:          opts.normalize(),
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, question string, reqOpts domain.QueryOptions) (*domain.Answer, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errEmptyQuestion)
	}
	mode := reqOpts.Mode
	if mode == "" {
		mode = uc.opts.DefaultMode
	}
	topK := reqOpts.TopK
	if topK <= 0 || topK > uc.opts.CandidatePool {
		topK = uc.opts.TopK
	}

	records, err := uc.provider.Fetch(ctx, question)
	if err != nil {
		uc.emit(ctx, uc.record(question, mode, start, 0, nil, domain.Answer{Text: domain.RefusalText, Method: domain.MethodRefused}))
		return nil, domain.WrapError(domain.ErrTemporary, "fetch evidence", err)
	}

	corpus := uc.chunkRecords(records)
	dense, sparse := uc.rank(question, mode, corpus)

	byID := make(map[string]domain.TextChunk, len(corpus))
	order := make(map[string]int, len(corpus))
	for i, chunk := range corpus {
		byID[chunk.ChunkID] = chunk
		order[chunk.ChunkID] = i
	}
	fused := fuseRRF(dense, sparse, byID, order, uc.opts.RRFK, topK)
	confidence := scoreConfidence(fused)

	answer := uc.synthesizer.Synthesize(ctx, question, fused, confidence)

	uc.emit(ctx, uc.record(question, mode, start, len(records), fused, answer))
	return &answer, nil
}

func (uc *AskUseCase) chunkRecords(records []domain.EvidenceRecord) []domain.TextChunk {
	var out []domain.TextChunk
	for _, rec := range records {
		for _, field := range rec.Fields {
			out = append(out, uc.chunker.Split(rec.DocID, field.Name, field.Text)...)
		}
	}
	return out
}

// rank builds the requested per-query indexes. In hybrid mode the two
// rankers have no data dependency on each other, so they run concurrently;
// the fused result is identical either way.
func (uc *AskUseCase) rank(question string, mode domain.RetrievalMode, corpus []domain.TextChunk) (dense, sparse []domain.Candidate) {
	pool := uc.opts.CandidatePool
	switch mode {
	case domain.ModeDense:
		dense = uc.denseBuilder.Build(corpus).Rank(question, pool)
	case domain.ModeSparse:
		sparse = uc.sparseBuilder.Build(corpus).Rank(question, pool)
	default:
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			dense = uc.denseBuilder.Build(corpus).Rank(question, pool)
		}()
		go func() {
			defer wg.Done()
			sparse = uc.sparseBuilder.Build(corpus).Rank(question, pool)
		}()
		wg.Wait()
	}
	return dense, sparse
}

func (uc *AskUseCase) record(question string, mode domain.RetrievalMode, start time.Time, numRecords int, fused []domain.FusedResult, answer domain.Answer) domain.InteractionRecord {
	evidenceIDs := make([]string, 0, len(fused))
	for _, fr := range fused {
		evidenceIDs = append(evidenceIDs, fr.Chunk.ChunkID)
	}
	return domain.InteractionRecord{
		Timestamp:       time.Now().UTC(),
		Query:           truncateRunes(question, uc.opts.QueryMaxLen),
		LatencyMS:       float64(time.Since(start).Microseconds()) / 1000.0,
		EvidenceIDs:     evidenceIDs,
		Confidence:      answer.Confidence,
		NumEvidence:     len(fused),
		NumRecords:      numRecords,
		RetrievalMethod: string(mode),
		LLMUsed:         answer.GeneratorUsed,
		AnswerPreview:   truncateRunes(answer.Text, uc.opts.PreviewMaxLen),
	}
}

// emit hands the record to the sink. The sink is a best-effort side
// channel; a failure is logged and the answer is returned unchanged.
func (uc *AskUseCase) emit(ctx context.Context, rec domain.InteractionRecord) {
	if uc.sink == nil {
		return
	}
	if err := uc.sink.Record(ctx, rec); err != nil {
		uc.logger.Warn("telemetry_record_failed", "error", err)
	}
}
