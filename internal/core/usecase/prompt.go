package usecase

import (
	"strings"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

const evidenceSnippetLimit = 1200

const generationInstructions = `You are TruPharma Assistant, a medical drug-label information tool.
Answer the question using ONLY the retrieved FDA drug-label evidence below.
Cite every key claim with the bracket notation shown (e.g. [record_id::field]).
Keep the answer concise (3-6 sentences). If the evidence is insufficient, respond exactly:
"` + domain.RefusalText + `"
Do NOT fabricate facts.`

func buildGenerationPrompt(question string, fused []domain.FusedResult) string {
	var b strings.Builder
	b.WriteString(generationInstructions)
	b.WriteString("\n\nEvidence:\n")
	for _, fr := range fused {
		b.WriteString("[")
		b.WriteString(fr.Chunk.CitationKey())
		b.WriteString("]  ")
		b.WriteString(truncateRunes(strings.TrimSpace(fr.Chunk.Text), evidenceSnippetLimit))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer (with citations):")
	return b.String()
}
