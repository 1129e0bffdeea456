package usecase

import (
	"strings"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

const defaultExtractiveBudget = 1200

// extractiveAnswer builds the deterministic fallback: top fused chunks in
// fusion order, each segment prefixed with its own citation marker, under a
// rune budget. The citation invariant holds by construction.
func extractiveAnswer(fused []domain.FusedResult, budget int) (string, []string) {
	if budget <= 0 {
		budget = defaultExtractiveBudget
	}

	var b strings.Builder
	var citations []string
	remaining := budget
	for _, fr := range fused {
		segment := strings.TrimSpace(fr.Chunk.Text)
		if segment == "" {
			continue
		}
		marker := "[" + fr.Chunk.CitationKey() + "]"
		// Not enough room left for a marker plus a meaningful excerpt.
		if remaining < len(marker)+40 {
			break
		}
		segment = truncateRunes(segment, remaining-len(marker)-1)
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(marker)
		b.WriteByte(' ')
		b.WriteString(segment)
		citations = append(citations, fr.Chunk.ChunkID)
		remaining = budget - b.Len()
	}
	return b.String(), citations
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
