package openfda

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/core/ports"
)

const (
	openFDAMaxLimit = 1000

	defaultPageLimit  = 20
	defaultMaxRecords = 20
	defaultMinChars   = 40
)

// FieldPolicy controls which label sections become evidence. An empty
// allowlist admits every field the blocklist does not reject.
type FieldPolicy struct {
	Allowlist          []string `yaml:"allowlist"`
	Blocklist          []string `yaml:"blocklist"`
	IncludeTableFields bool     `yaml:"include_table_fields"`
	MinChars           int      `yaml:"min_chars"`
}

// DefaultFieldPolicy blocks the structured metadata fields that carry no
// prose worth retrieving.
func DefaultFieldPolicy() FieldPolicy {
	return FieldPolicy{
		Blocklist: []string{
			"spl_product_data_elements",
			"spl_indexing_data_elements",
			"effective_time",
			"set_id",
			"id",
			"version",
			"openfda",
			"package_label_principal_display_panel",
		},
		MinChars: defaultMinChars,
	}
}

func (p FieldPolicy) normalize() FieldPolicy {
	if p.MinChars <= 0 {
		p.MinChars = defaultMinChars
	}
	return p
}

type ProviderConfig struct {
	Policy       FieldPolicy
	SearchFields []string
	PageLimit    int
	MaxRecords   int
	WithEvents   bool
	WithProducts bool
	// Resolver canonicalizes the drug name the question mentions before
	// the FAERS and NDC lookups. Nil falls back to the token heuristic.
	Resolver ports.DrugResolver
}

// Provider fetches fresh label records for every question. With
// WithProducts set it appends one synthetic record of NDC Directory
// product metadata; with WithEvents one summarizing FAERS adverse event
// counts. Both enrichments key off the resolved drug identity.
type Provider struct {
	client    *Client
	policy    FieldPolicy
	fields    []string
	pageLimit int
	maxRecs   int
	resolver  ports.DrugResolver
	events    *EventSummarizer
	products  *ProductSummarizer
	logger    *slog.Logger
}

func NewProvider(client *Client, cfg ProviderConfig, logger *slog.Logger) *Provider {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.PageLimit > openFDAMaxLimit {
		cfg.PageLimit = openFDAMaxLimit
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultMaxRecords
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		client:    client,
		policy:    cfg.Policy.normalize(),
		fields:    cfg.SearchFields,
		pageLimit: cfg.PageLimit,
		maxRecs:   cfg.MaxRecords,
		resolver:  cfg.Resolver,
		logger:    logger,
	}
	if cfg.WithEvents {
		p.events = NewEventSummarizer(client)
	}
	if cfg.WithProducts {
		p.products = NewProductSummarizer(client)
	}
	return p
}

type labelResponse struct {
	Results []map[string]any `json:"results"`
}

// Fetch queries the label endpoint, paginating until MaxRecords or the
// result set is exhausted. A 404 means no labels matched and yields an
// empty evidence set, not an error.
func (p *Provider) Fetch(ctx context.Context, question string) ([]domain.EvidenceRecord, error) {
	search := BuildSearchQuery(question, p.fields)

	var out []domain.EvidenceRecord
	skip := 0
	for len(out) < p.maxRecs {
		limit := p.pageLimit
		if remaining := p.maxRecs - len(out); limit > remaining {
			limit = remaining
		}

		params := url.Values{}
		params.Set("search", search)
		params.Set("limit", strconv.Itoa(limit))
		params.Set("skip", strconv.Itoa(skip))

		var page labelResponse
		if err := p.client.getJSON(ctx, p.client.labelURL, "label", params, &page); err != nil {
			if IsNotFound(err) {
				break
			}
			return nil, fmt.Errorf("fetch labels: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		for _, raw := range page.Results {
			record := p.toRecord(raw, skip+len(out))
			if len(record.Fields) > 0 {
				out = append(out, record)
			}
			if len(out) == p.maxRecs {
				break
			}
		}
		skip += len(page.Results)
		if len(page.Results) < limit {
			break
		}
	}

	p.logger.Debug("labels_fetched", "search", search, "records", len(out))

	if p.events != nil || p.products != nil {
		identity := p.identify(ctx, question)
		if p.products != nil {
			if product := p.products.Summarize(ctx, identity); product != nil {
				out = append(out, *product)
			}
		}
		if p.events != nil {
			if summary := p.events.Summarize(ctx, faersName(identity)); summary != nil {
				out = append(out, *summary)
			}
		}
	}
	return out, nil
}

// identify resolves the drug the question names. Without a resolver, or
// when resolution finds nothing, the heuristic token stands in.
func (p *Provider) identify(ctx context.Context, question string) domain.DrugIdentity {
	name := ExtractDrugName(question)
	if p.resolver == nil {
		return domain.UnresolvedIdentity(name)
	}
	identity := p.resolver.Resolve(ctx, name)
	p.logger.Debug("drug_resolved",
		"input", identity.Input,
		"resolved", identity.ResolvedName,
		"rxcui", identity.RxCUI,
		"confidence", identity.Confidence,
	)
	return identity
}

// faersName picks the name FAERS reports are indexed under: the generic
// ingredient when known, otherwise whatever resolution produced.
func faersName(identity domain.DrugIdentity) string {
	if identity.GenericName != "" {
		return identity.GenericName
	}
	return identity.ResolvedName
}

func (p *Provider) toRecord(raw map[string]any, position int) domain.EvidenceRecord {
	record := domain.EvidenceRecord{DocID: deriveDocID(raw, position)}

	names := make([]string, 0, len(raw))
	texts := make(map[string]string, len(raw))
	for name, value := range raw {
		if !p.admits(name) {
			continue
		}
		text := normalizeFieldValue(value)
		if len(text) < p.policy.MinChars {
			continue
		}
		names = append(names, name)
		texts[name] = text
	}

	// Map iteration order is random; sorted field order keeps chunk ids
	// stable across identical fetches.
	sort.Strings(names)
	for _, name := range names {
		record.Fields = append(record.Fields, domain.FieldText{Name: name, Text: texts[name]})
	}
	return record
}

func (p *Provider) admits(field string) bool {
	if len(p.policy.Allowlist) > 0 && !contains(p.policy.Allowlist, field) {
		return false
	}
	if contains(p.policy.Blocklist, field) {
		return false
	}
	if !p.policy.IncludeTableFields && strings.HasSuffix(field, "_table") {
		return false
	}
	return true
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

// deriveDocID prefers the record's own identifiers, then openFDA
// metadata, then a positional fallback.
func deriveDocID(record map[string]any, position int) string {
	for _, key := range []string{"id", "set_id"} {
		if s, ok := record[key].(string); ok && s != "" {
			return s
		}
	}
	if openfda, ok := record["openfda"].(map[string]any); ok {
		for _, key := range []string{"spl_id", "spl_set_id", "brand_name", "product_ndc", "application_number"} {
			switch v := openfda[key].(type) {
			case []any:
				if len(v) > 0 {
					if s, ok := v[0].(string); ok && s != "" {
						return s
					}
				}
			case string:
				if v != "" {
					return v
				}
			}
		}
	}
	return fmt.Sprintf("record_%d", position+1)
}

func normalizeFieldValue(value any) string {
	switch v := value.(type) {
	case string:
		return cleanText(v)
	case []any:
		var parts []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
		return cleanText(strings.Join(parts, " "))
	default:
		return ""
	}
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// cleanText strips markup left over from SPL conversion and collapses
// runs of whitespace.
func cleanText(text string) string {
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
