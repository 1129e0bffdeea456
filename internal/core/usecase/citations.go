package usecase

import (
	"strings"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

// Citation markers are bracket-delimited source::field tokens embedded
// inline in answer text, e.g. [a1b2::warnings] or, fully qualified,
// [a1b2::warnings::c002]. Bracketed spans without the :: separator are
// ordinary label prose (e.g. "[see Warnings]"), not citations.
func parseCitationMarkers(text string) []string {
	var out []string
	for i := 0; i < len(text); {
		open := strings.IndexByte(text[i:], '[')
		if open < 0 {
			break
		}
		open += i
		closing := strings.IndexByte(text[open+1:], ']')
		if closing < 0 {
			break
		}
		token := text[open+1 : open+1+closing]
		if strings.Contains(token, "::") && !strings.ContainsAny(token, "[\n") {
			out = append(out, token)
			i = open + closing + 2
			continue
		}
		// A rejected span may still contain a marker after a stray '[',
		// so rescan from just inside it.
		i = open + 1
	}
	return out
}

// enforceCitations validates generated text against the fused evidence set:
// every marker must resolve to a fused chunk (by full chunk id or by its
// doc::field pair) and, unless the text is the fixed refusal phrase, at
// least one marker must be present. On success it returns the cited chunk
// ids in fused order, deduplicated.
func enforceCitations(text string, fused []domain.FusedResult) ([]string, bool) {
	if strings.TrimSpace(text) == domain.RefusalText {
		return nil, true
	}

	markers := parseCitationMarkers(text)
	if len(markers) == 0 {
		return nil, false
	}

	byID := make(map[string]string, len(fused))
	byKey := make(map[string]string, len(fused))
	for _, fr := range fused {
		byID[fr.Chunk.ChunkID] = fr.Chunk.ChunkID
		// A doc::field marker resolves to the best-ranked chunk of that pair.
		if _, ok := byKey[fr.Chunk.CitationKey()]; !ok {
			byKey[fr.Chunk.CitationKey()] = fr.Chunk.ChunkID
		}
	}

	cited := make(map[string]struct{}, len(markers))
	for _, marker := range markers {
		chunkID, ok := byID[marker]
		if !ok {
			chunkID, ok = byKey[marker]
		}
		if !ok {
			return nil, false
		}
		cited[chunkID] = struct{}{}
	}

	out := make([]string, 0, len(cited))
	for _, fr := range fused {
		if _, ok := cited[fr.Chunk.ChunkID]; ok {
			out = append(out, fr.Chunk.ChunkID)
		}
	}
	return out, true
}
