package domain

import "time"

// InteractionRecord is the flattened, write-once telemetry tuple emitted per
// query. It is handed to the telemetry sink and never read back by the
// engine.
type InteractionRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Query           string    `json:"query"`
	LatencyMS       float64   `json:"latency_ms"`
	EvidenceIDs     []string  `json:"evidence_ids"`
	Confidence      float64   `json:"confidence"`
	NumEvidence     int       `json:"num_evidence"`
	NumRecords      int       `json:"num_records"`
	RetrievalMethod string    `json:"retrieval_method"`
	LLMUsed         bool      `json:"llm_used"`
	AnswerPreview   string    `json:"answer_preview"`
}
