package ports

import (
	"context"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

// SafetyQueryService is the inbound contract for one-shot grounded
// drug-safety questions.
type SafetyQueryService interface {
	Ask(ctx context.Context, question string, opts domain.QueryOptions) (*domain.Answer, error)
}

// InteractionReader is the inbound read model over the append-only
// interaction log, serving the front-end boundary.
type InteractionReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.InteractionRecord, error)
}
