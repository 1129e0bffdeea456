package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/core/ports"
)

const defaultGenerationTimeout = 30 * time.Second

// AnswerSynthesizer turns the fused evidence set into the terminal answer.
// The generation-capable variant delegates to the external service under a
// strict citation contract and degrades to the extractive method whenever
// the service fails, times out, or returns uncited or out-of-set claims.
// The extractive-only variant never makes a network call. The variant is
// fixed at construction time.
type AnswerSynthesizer struct {
	generator        ports.AnswerGenerator
	timeout          time.Duration
	refusalThreshold float64
	extractiveBudget int
	logger           *slog.Logger
}

func NewGenerativeSynthesizer(generator ports.AnswerGenerator, timeout time.Duration, refusalThreshold float64, extractiveBudget int, logger *slog.Logger) *AnswerSynthesizer {
	s := newSynthesizer(refusalThreshold, extractiveBudget, logger)
	s.generator = generator
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

func NewExtractiveSynthesizer(refusalThreshold float64, extractiveBudget int, logger *slog.Logger) *AnswerSynthesizer {
	return newSynthesizer(refusalThreshold, extractiveBudget, logger)
}

func newSynthesizer(refusalThreshold float64, extractiveBudget int, logger *slog.Logger) *AnswerSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if extractiveBudget <= 0 {
		extractiveBudget = defaultExtractiveBudget
	}
	return &AnswerSynthesizer{
		timeout:          defaultGenerationTimeout,
		refusalThreshold: refusalThreshold,
		extractiveBudget: extractiveBudget,
		logger:           logger,
	}
}

// Synthesize runs the answer state machine. Empty evidence or confidence at
// or below the refusal threshold terminates in a refusal without touching
// the generation service.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, fused []domain.FusedResult, confidence float64) domain.Answer {
	if len(fused) == 0 || confidence <= s.refusalThreshold {
		return s.refuse(fused)
	}

	var consulted bool
	if s.generator != nil {
		answer, responded, ok := s.generate(ctx, question, fused, confidence)
		if ok {
			return answer
		}
		consulted = responded
	}

	text, citations := extractiveAnswer(fused, s.extractiveBudget)
	if text == "" {
		answer := s.refuse(fused)
		answer.GeneratorUsed = consulted
		return answer
	}
	return domain.Answer{
		Text:          text,
		Citations:     citations,
		Method:        domain.MethodExtractive,
		Confidence:    confidence,
		Evidence:      fused,
		GeneratorUsed: consulted,
	}
}

// generate returns the terminal answer when the service produced usable
// output. responded distinguishes "the service answered and we discarded
// it" from "the service never answered"; telemetry reports the former as
// an LLM interaction.
func (s *AnswerSynthesizer) generate(ctx context.Context, question string, fused []domain.FusedResult, confidence float64) (answer domain.Answer, responded, ok bool) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.Generate(genCtx, buildGenerationPrompt(question, fused))
	if err != nil {
		// Recoverable: the extractive path still produces a grounded answer.
		s.logger.Warn("generation_unavailable", "error", err)
		return domain.Answer{}, false, false
	}

	text = strings.TrimSpace(text)
	if text == domain.RefusalText {
		answer = s.refuse(fused)
		answer.GeneratorUsed = true
		return answer, true, true
	}

	citations, cited := enforceCitations(text, fused)
	if !cited {
		s.logger.Warn("generation_discarded_uncited", "question_len", len(question))
		return domain.Answer{}, true, false
	}
	return domain.Answer{
		Text:          text,
		Citations:     citations,
		Method:        domain.MethodGenerated,
		Confidence:    confidence,
		Evidence:      fused,
		GeneratorUsed: true,
	}, true, true
}

func (s *AnswerSynthesizer) refuse(fused []domain.FusedResult) domain.Answer {
	return domain.Answer{
		Text:       domain.RefusalText,
		Citations:  nil,
		Method:     domain.MethodRefused,
		Confidence: 0,
		Evidence:   fused,
	}
}
