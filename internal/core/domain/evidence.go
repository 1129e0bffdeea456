package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldText is one named text section of a source record. Fields keep the
// order the provider emitted them in so downstream chunk identifiers are
// deterministic.
type FieldText struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// EvidenceRecord is one source document as supplied by the evidence
// provider. It is immutable and lives only for the query that fetched it.
type EvidenceRecord struct {
	DocID  string      `json:"doc_id"`
	Fields []FieldText `json:"fields"`
}

// TextChunk is the unit of retrieval: one overlapping word window of a
// record field, tagged with its provenance.
type TextChunk struct {
	ChunkID  string `json:"chunk_id"`
	DocID    string `json:"doc_id"`
	Field    string `json:"field"`
	Text     string `json:"text"`
	Position int    `json:"position"` // 1-based window index within the field
}

// CitationKey is the doc::field pair used in citation markers.
func (c TextChunk) CitationKey() string {
	return c.DocID + chunkIDSeparator + c.Field
}

const chunkIDSeparator = "::"

// NewChunkID derives a chunk identifier from its provenance. The derivation
// is a pure function of its inputs, so identical source data always yields
// identical identifiers and ids can be generated concurrently without
// coordination.
func NewChunkID(docID, field string, position int) string {
	return fmt.Sprintf("%s%s%s%sc%03d", docID, chunkIDSeparator, field, chunkIDSeparator, position)
}

// DecodeChunkID recovers the (doc_id, field, position) triple a chunk id was
// derived from.
func DecodeChunkID(id string) (docID, field string, position int, err error) {
	parts := strings.Split(id, chunkIDSeparator)
	if len(parts) < 3 {
		return "", "", 0, fmt.Errorf("chunk id %q: want doc::field::cNNN", id)
	}
	last := parts[len(parts)-1]
	if !strings.HasPrefix(last, "c") {
		return "", "", 0, fmt.Errorf("chunk id %q: missing window component", id)
	}
	position, err = strconv.Atoi(last[1:])
	if err != nil || position < 1 {
		return "", "", 0, fmt.Errorf("chunk id %q: bad window index", id)
	}
	field = parts[len(parts)-2]
	docID = strings.Join(parts[:len(parts)-2], chunkIDSeparator)
	if docID == "" || field == "" {
		return "", "", 0, fmt.Errorf("chunk id %q: empty doc or field", id)
	}
	return docID, field, position, nil
}
