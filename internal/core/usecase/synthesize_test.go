package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

type generatorFake struct {
	text  string
	err   error
	calls int
}

func (f *generatorFake) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func synthEvidence() []domain.FusedResult {
	return []domain.FusedResult{
		{
			Chunk: domain.TextChunk{
				ChunkID: "D1::warnings::c001", DocID: "D1", Field: "warnings",
				Text: "NSAIDs including ibuprofen cause an increased risk of serious gastrointestinal adverse events including bleeding ulceration and perforation of the stomach or intestines",
			},
			FusionScore: 1.0/61 + 1.0/62,
			SourceRanks: domain.SourceRanks{Dense: 1, Sparse: 2},
		},
		{
			Chunk: domain.TextChunk{
				ChunkID: "D1::drug_interactions::c001", DocID: "D1", Field: "drug_interactions",
				Text: "Concomitant use with anticoagulants such as warfarin increases the risk of serious bleeding events beyond either drug alone",
			},
			FusionScore: 1.0 / 62,
			SourceRanks: domain.SourceRanks{Sparse: 1},
		},
	}
}

func TestSynthesizeRefusesOnEmptyEvidence(t *testing.T) {
	gen := &generatorFake{text: "should not be called"}
	s := NewGenerativeSynthesizer(gen, 0, 0, 0, nil)

	answer := s.Synthesize(context.Background(), "q", nil, 0)
	if answer.Method != domain.MethodRefused {
		t.Fatalf("method = %s, want refused", answer.Method)
	}
	if answer.Text != domain.RefusalText {
		t.Fatalf("text = %q, want fixed refusal phrase", answer.Text)
	}
	if answer.Confidence != 0 || len(answer.Citations) != 0 {
		t.Fatalf("refusal answer not normalized: %+v", answer)
	}
	if gen.calls != 0 {
		t.Fatal("generation service must not be called on empty evidence")
	}
}

func TestSynthesizeRefusesBelowThreshold(t *testing.T) {
	gen := &generatorFake{text: "irrelevant"}
	s := NewGenerativeSynthesizer(gen, 0, 0.9, 0, nil)

	answer := s.Synthesize(context.Background(), "q", synthEvidence(), 0.5)
	if answer.Method != domain.MethodRefused || answer.Confidence != 0 {
		t.Fatalf("expected refusal under threshold, got %+v", answer)
	}
	if gen.calls != 0 {
		t.Fatal("generation service must not be called when refusing")
	}
}

func TestSynthesizeGeneratedWithValidCitations(t *testing.T) {
	gen := &generatorFake{text: "Ibuprofen raises bleeding risk [D1::warnings], especially with warfarin [D1::drug_interactions]."}
	s := NewGenerativeSynthesizer(gen, 0, 0, 0, nil)

	answer := s.Synthesize(context.Background(), "does ibuprofen cause bleeding", synthEvidence(), 0.62)
	if answer.Method != domain.MethodGenerated {
		t.Fatalf("method = %s, want generated", answer.Method)
	}
	if !answer.GeneratorUsed {
		t.Fatal("generated answer must report the generation service as used")
	}
	if answer.Confidence != 0.62 {
		t.Fatalf("confidence = %f, want 0.62", answer.Confidence)
	}
	want := []string{"D1::warnings::c001", "D1::drug_interactions::c001"}
	if len(answer.Citations) != 2 || answer.Citations[0] != want[0] || answer.Citations[1] != want[1] {
		t.Fatalf("citations = %v, want %v", answer.Citations, want)
	}
}

func TestSynthesizeFallsBackOnGenerationError(t *testing.T) {
	gen := &generatorFake{err: errors.New("upstream timeout")}
	s := NewGenerativeSynthesizer(gen, 0, 0, 0, nil)

	answer := s.Synthesize(context.Background(), "q", synthEvidence(), 0.6)
	if answer.Method != domain.MethodExtractive {
		t.Fatalf("method = %s, want extractive fallback", answer.Method)
	}
	if len(answer.Citations) == 0 {
		t.Fatal("extractive answer must carry citations")
	}
	if answer.GeneratorUsed {
		t.Fatal("a generation error means the service never answered")
	}
}

func TestSynthesizeFallsBackOnUncitedGeneration(t *testing.T) {
	gen := &generatorFake{text: "A fluent answer with no citation markers at all."}
	s := NewGenerativeSynthesizer(gen, 0, 0, 0, nil)

	answer := s.Synthesize(context.Background(), "q", synthEvidence(), 0.6)
	if answer.Method != domain.MethodExtractive {
		t.Fatalf("method = %s, want extractive", answer.Method)
	}
	if !answer.GeneratorUsed {
		t.Fatal("discarded output still means the service answered")
	}
}

func TestSynthesizeFallsBackOnOutOfSetCitation(t *testing.T) {
	gen := &generatorFake{text: "Hallucinated claim [D7::overdosage]."}
	s := NewGenerativeSynthesizer(gen, 0, 0, 0, nil)

	answer := s.Synthesize(context.Background(), "q", synthEvidence(), 0.6)
	if answer.Method != domain.MethodExtractive {
		t.Fatalf("method = %s, want extractive", answer.Method)
	}
	for _, c := range answer.Citations {
		if c == "D7::overdosage" {
			t.Fatal("discarded citation leaked into fallback answer")
		}
	}
}

func TestSynthesizeGeneratorRefusalPhrase(t *testing.T) {
	gen := &generatorFake{text: domain.RefusalText}
	s := NewGenerativeSynthesizer(gen, 0, 0, 0, nil)

	answer := s.Synthesize(context.Background(), "q", synthEvidence(), 0.6)
	if answer.Method != domain.MethodRefused || answer.Confidence != 0 {
		t.Fatalf("expected refusal on verbatim refusal phrase, got %+v", answer)
	}
	if !answer.GeneratorUsed {
		t.Fatal("a generated refusal is still a generation service response")
	}
}

func TestSynthesizeRefusalWithoutGeneratorReportsUnused(t *testing.T) {
	gen := &generatorFake{text: "never reached"}
	s := NewGenerativeSynthesizer(gen, 0, 0, 0, nil)

	answer := s.Synthesize(context.Background(), "q", nil, 0)
	if answer.GeneratorUsed {
		t.Fatal("refusal before generation must not report the service as used")
	}
}

func TestSynthesizeExtractiveOnlyVariant(t *testing.T) {
	s := NewExtractiveSynthesizer(0, 0, nil)
	answer := s.Synthesize(context.Background(), "q", synthEvidence(), 0.6)
	if answer.Method != domain.MethodExtractive {
		t.Fatalf("method = %s, want extractive", answer.Method)
	}
	if !strings.Contains(answer.Text, "[D1::warnings]") {
		t.Fatalf("extractive text missing citation marker: %q", answer.Text)
	}
	if answer.Citations[0] != "D1::warnings::c001" {
		t.Fatalf("citations = %v", answer.Citations)
	}
}

func TestExtractiveAnswerHonorsBudget(t *testing.T) {
	fused := synthEvidence()
	text, citations := extractiveAnswer(fused, 120)
	if len([]rune(text)) > 120 {
		t.Fatalf("budget exceeded: %d runes", len([]rune(text)))
	}
	if len(citations) == 0 {
		t.Fatal("expected at least one cited segment")
	}
	// Deterministic across calls.
	again, _ := extractiveAnswer(fused, 120)
	if text != again {
		t.Fatal("extractive answer not deterministic")
	}
}
