package openfda

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

const (
	faersTopReactions = 10
	faersFieldName    = "adverse_event_summary"
)

// EventSummarizer aggregates FAERS adverse event reports for one drug
// via the count endpoint, so no individual reports are downloaded.
type EventSummarizer struct {
	client *Client
}

func NewEventSummarizer(client *Client) *EventSummarizer {
	return &EventSummarizer{client: client}
}

type countResponse struct {
	Meta struct {
		Results struct {
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []struct {
		Term  string `json:"term"`
		Count int    `json:"count"`
	} `json:"results"`
}

// Summarize returns a synthetic evidence record describing report volume
// and the most frequent reactions. FAERS enrichment is best effort: any
// failure yields nil and the label evidence stands alone.
func (s *EventSummarizer) Summarize(ctx context.Context, drugName string) *domain.EvidenceRecord {
	drugName = strings.ToLower(strings.TrimSpace(drugName))
	if drugName == "" {
		return nil
	}
	search := fmt.Sprintf(`patient.drug.openfda.generic_name:"%s"`, drugName)

	total, err := s.totalReports(ctx, search)
	if err != nil || total == 0 {
		return nil
	}
	reactions, err := s.topReactions(ctx, search)
	if err != nil || len(reactions) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FAERS adverse event reports for %s: %d total reports. ", drugName, total)
	b.WriteString("Most frequently reported reactions: ")
	for i, r := range reactions {
		if i > 0 {
			b.WriteString("; ")
		}
		pct := float64(r.count) / float64(total) * 100
		fmt.Fprintf(&b, "%s (%d reports, %.1f%%)", strings.ToLower(r.term), r.count, pct)
	}
	b.WriteString(". Reported events are not verified and do not establish causation.")

	return &domain.EvidenceRecord{
		DocID:  "faers_" + strings.ReplaceAll(drugName, " ", "_"),
		Fields: []domain.FieldText{{Name: faersFieldName, Text: b.String()}},
	}
}

func (s *EventSummarizer) totalReports(ctx context.Context, search string) (int, error) {
	params := url.Values{}
	params.Set("search", search)
	params.Set("limit", "1")

	var resp countResponse
	if err := s.client.getJSON(ctx, s.client.eventURL, "faers_total", params, &resp); err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return resp.Meta.Results.Total, nil
}

type reactionCount struct {
	term  string
	count int
}

func (s *EventSummarizer) topReactions(ctx context.Context, search string) ([]reactionCount, error) {
	params := url.Values{}
	params.Set("search", search)
	params.Set("count", "patient.reaction.reactionmeddrapt.exact")
	params.Set("limit", strconv.Itoa(faersTopReactions))

	var resp countResponse
	if err := s.client.getJSON(ctx, s.client.eventURL, "faers_reactions", params, &resp); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]reactionCount, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Term != "" {
			out = append(out, reactionCount{term: r.Term, count: r.Count})
		}
	}
	return out, nil
}
