package usecase

import "github.com/trupharma/drug-safety-rag/internal/core/domain"

// Confidence formula, pinned so the refusal gate is testable:
//
//	conf = clamp01(base + perChunk*min(n, saturation) + topWeight*topFusionScore)
//
// It is 0 exactly when the fused set is empty, never decreases when the
// candidate count or the top fusion score grows, saturates after
// confidenceSaturation chunks, and is clamped to [0,1]. The constants are
// tunable; only those properties are load-bearing.
const (
	confidenceBase       = 0.30
	confidencePerChunk   = 0.08
	confidenceTopWeight  = 15.0
	confidenceSaturation = 5
)

func scoreConfidence(fused []domain.FusedResult) float64 {
	if len(fused) == 0 {
		return 0
	}
	n := len(fused)
	if n > confidenceSaturation {
		n = confidenceSaturation
	}
	conf := confidenceBase + confidencePerChunk*float64(n) + confidenceTopWeight*fused[0].FusionScore
	if conf > 1 {
		conf = 1
	}
	return conf
}
