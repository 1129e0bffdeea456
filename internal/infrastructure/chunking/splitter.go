package chunking

import (
	"fmt"
	"strings"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

// Splitter cuts field text into overlapping windows of whole words.
// Consecutive windows share the last Overlap words; the final partial
// window is kept rather than dropped.
type Splitter struct {
	WordsPerChunk int
	Overlap       int
}

// NewSplitter validates the window geometry. A non-positive step size would
// loop forever, so it is rejected up front as a configuration defect.
func NewSplitter(wordsPerChunk, overlap int) (*Splitter, error) {
	if wordsPerChunk <= 0 {
		wordsPerChunk = 250
	}
	if overlap < 0 {
		overlap = 0
	}
	if wordsPerChunk-overlap <= 0 {
		return nil, fmt.Errorf("chunking: window of %d words must exceed overlap of %d", wordsPerChunk, overlap)
	}
	return &Splitter{
		WordsPerChunk: wordsPerChunk,
		Overlap:       overlap,
	}, nil
}

// Split emits the ordered chunk windows for one record field. Empty text
// yields no chunks. The output depends only on the inputs and the splitter
// geometry.
func (s *Splitter) Split(docID, field, text string) []domain.TextChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := s.WordsPerChunk - s.Overlap
	out := make([]domain.TextChunk, 0, len(words)/step+1)
	for start, window := 0, 1; start < len(words); start, window = start+step, window+1 {
		end := start + s.WordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		out = append(out, domain.TextChunk{
			ChunkID:  domain.NewChunkID(docID, field, window),
			DocID:    docID,
			Field:    field,
			Text:     strings.Join(words[start:end], " "),
			Position: window,
		})
		if end == len(words) {
			break
		}
	}
	return out
}
