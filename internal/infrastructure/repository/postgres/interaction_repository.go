package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

// InteractionRepository persists the append-only interaction log the
// telemetry worker writes and the API reads back.
type InteractionRepository struct {
	db *sql.DB
}

func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *InteractionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS interaction_log (
	id BIGSERIAL PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL,
	query TEXT NOT NULL,
	latency_ms DOUBLE PRECISION NOT NULL,
	evidence_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence DOUBLE PRECISION NOT NULL,
	num_evidence INTEGER NOT NULL,
	num_records INTEGER NOT NULL,
	retrieval_method TEXT NOT NULL,
	llm_used BOOLEAN NOT NULL,
	answer_preview TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interaction_log_recorded_at ON interaction_log(recorded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *InteractionRepository) Insert(ctx context.Context, rec domain.InteractionRecord) error {
	evidenceJSON, err := json.Marshal(rec.EvidenceIDs)
	if err != nil {
		return fmt.Errorf("marshal evidence ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO interaction_log (
	recorded_at, query, latency_ms, evidence_ids, confidence, num_evidence, num_records, retrieval_method, llm_used, answer_preview
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		rec.Timestamp, rec.Query, rec.LatencyMS, evidenceJSON,
		rec.Confidence, rec.NumEvidence, rec.NumRecords, rec.RetrievalMethod, rec.LLMUsed, rec.AnswerPreview,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (r *InteractionRepository) ListRecent(ctx context.Context, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT recorded_at, query, latency_ms, evidence_ids, confidence, num_evidence, num_records, retrieval_method, llm_used, answer_preview
FROM interaction_log
ORDER BY recorded_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []domain.InteractionRecord
	for rows.Next() {
		var rec domain.InteractionRecord
		var evidenceRaw []byte
		err := rows.Scan(
			&rec.Timestamp, &rec.Query, &rec.LatencyMS, &evidenceRaw,
			&rec.Confidence, &rec.NumEvidence, &rec.NumRecords, &rec.RetrievalMethod, &rec.LLMUsed, &rec.AnswerPreview,
		)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if err := json.Unmarshal(evidenceRaw, &rec.EvidenceIDs); err != nil {
			return nil, fmt.Errorf("unmarshal evidence ids: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}
