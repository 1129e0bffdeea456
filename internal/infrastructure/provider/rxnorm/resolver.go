package rxnorm

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
)

const maxApproximateEntries = 10

// Term types that name a branded product versus a generic concept.
var (
	brandTTY   = map[string]bool{"BN": true, "BPCK": true, "SBD": true, "SBDF": true, "SBDG": true}
	genericTTY = map[string]bool{"IN": true, "MIN": true, "PIN": true, "SCD": true, "SCDF": true, "SCDG": true}
)

// Resolver canonicalizes drug names through a fixed escalation chain:
// exact RxCUI lookup, concept-group lookup, fuzzy match, then spelling
// correction with a single re-resolution. Every stage is best effort; a
// name RxNav does not know yields the unresolved passthrough identity.
type Resolver struct {
	client *Client
	logger *slog.Logger
}

func NewResolver(client *Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, name string) domain.DrugIdentity {
	return r.resolve(ctx, name, true)
}

func (r *Resolver) resolve(ctx context.Context, name string, allowCorrection bool) domain.DrugIdentity {
	identity := domain.UnresolvedIdentity(strings.TrimSpace(name))
	if identity.Input == "" {
		return identity
	}

	if rxcui := r.rxcuiByName(ctx, identity.Input); rxcui != "" {
		identity.RxCUI = rxcui
		identity.Confidence = domain.MatchExact
		r.enrich(ctx, &identity, rxcui)
		return identity
	}

	if info := r.drugConcepts(ctx, identity.Input); len(info.rxcuis) > 0 {
		identity.RxCUI = info.rxcuis[0]
		identity.Confidence = domain.MatchExact
		if len(info.generics) > 0 {
			identity.GenericName = info.generics[0]
			identity.ResolvedName = info.generics[0]
		}
		identity.BrandNames = uniqueFold(info.brands)
		identity.AllRxCUIs = uniqueFold(info.rxcuis)
		r.enrich(ctx, &identity, identity.RxCUI)
		return identity
	}

	if candidates := r.approximateMatch(ctx, identity.Input); len(candidates) > 0 {
		best := candidates[0]
		identity.RxCUI = best.rxcui
		identity.ResolvedName = best.name
		identity.Confidence = domain.MatchApproximate
		r.enrich(ctx, &identity, best.rxcui)
		return identity
	}

	if allowCorrection {
		if suggestions := r.spellingSuggestions(ctx, identity.Input); len(suggestions) > 0 {
			corrected := suggestions[0]
			identity.SpellingSuggestion = corrected
			identity.Confidence = domain.MatchSpellingCorrected
			sub := r.resolve(ctx, corrected, false)
			if sub.RxCUI != "" {
				identity.RxCUI = sub.RxCUI
				identity.ResolvedName = sub.ResolvedName
				identity.GenericName = sub.GenericName
				identity.BrandNames = sub.BrandNames
				identity.AllRxCUIs = sub.AllRxCUIs
			}
			return identity
		}
	}

	return identity
}

// enrich fills the generic name, brand names, and related RxCUIs from a
// known concept. Brand names hang off the generic ingredient when one is
// known, since a product-level RxCUI carries few siblings.
func (r *Resolver) enrich(ctx context.Context, identity *domain.DrugIdentity, rxcui string) {
	if identity.GenericName == "" {
		if generic := r.firstRelatedName(ctx, rxcui, "IN MIN"); generic != "" {
			identity.GenericName = generic
			identity.ResolvedName = generic
		}
	}

	if len(identity.BrandNames) == 0 {
		if identity.GenericName != "" {
			if parent := r.rxcuiByName(ctx, identity.GenericName); parent != "" {
				identity.BrandNames = r.relatedNames(ctx, parent, "BN")
			}
		}
		if len(identity.BrandNames) == 0 {
			identity.BrandNames = r.relatedNames(ctx, rxcui, "BN")
		}
	}

	if len(identity.AllRxCUIs) == 0 {
		identity.AllRxCUIs = r.allRelated(ctx, rxcui)
	}
	if !containsFold(identity.AllRxCUIs, rxcui) {
		identity.AllRxCUIs = append([]string{rxcui}, identity.AllRxCUIs...)
	}

	if identity.ResolvedName == "" || identity.ResolvedName == identity.Input {
		if identity.GenericName != "" {
			identity.ResolvedName = identity.GenericName
		}
	}
}

type idGroupResponse struct {
	IDGroup struct {
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

func (r *Resolver) rxcuiByName(ctx context.Context, name string) string {
	params := url.Values{}
	params.Set("name", name)
	params.Set("search", "2")

	var resp idGroupResponse
	if err := r.client.getJSON(ctx, "/rxcui.json", "rxcui_by_name", params, &resp); err != nil {
		r.logger.Debug("rxnorm_lookup_failed", "operation", "rxcui_by_name", "error", err)
		return ""
	}
	for _, id := range resp.IDGroup.RxNormID {
		if id != "" {
			return id
		}
	}
	return ""
}

type conceptProperty struct {
	RxCUI string `json:"rxcui"`
	Name  string `json:"name"`
	Score string `json:"score"`
}

type conceptGroup struct {
	TTY               string            `json:"tty"`
	ConceptProperties []conceptProperty `json:"conceptProperties"`
}

type drugConceptInfo struct {
	brands   []string
	generics []string
	rxcuis   []string
}

func (r *Resolver) drugConcepts(ctx context.Context, name string) drugConceptInfo {
	params := url.Values{}
	params.Set("name", name)

	var resp struct {
		DrugGroup struct {
			ConceptGroup []conceptGroup `json:"conceptGroup"`
		} `json:"drugGroup"`
	}
	if err := r.client.getJSON(ctx, "/drugs.json", "drug_concepts", params, &resp); err != nil {
		r.logger.Debug("rxnorm_lookup_failed", "operation", "drug_concepts", "error", err)
		return drugConceptInfo{}
	}

	var info drugConceptInfo
	for _, grp := range resp.DrugGroup.ConceptGroup {
		for _, prop := range grp.ConceptProperties {
			if prop.RxCUI != "" {
				info.rxcuis = append(info.rxcuis, prop.RxCUI)
			}
			switch {
			case brandTTY[grp.TTY]:
				info.brands = append(info.brands, prop.Name)
			case genericTTY[grp.TTY]:
				info.generics = append(info.generics, prop.Name)
			}
		}
	}
	return info
}

type approximateCandidate struct {
	rxcui string
	name  string
}

func (r *Resolver) approximateMatch(ctx context.Context, term string) []approximateCandidate {
	params := url.Values{}
	params.Set("term", term)
	params.Set("maxEntries", strconv.Itoa(maxApproximateEntries))

	var resp struct {
		ApproximateGroup struct {
			Candidate []conceptProperty `json:"candidate"`
		} `json:"approximateGroup"`
	}
	if err := r.client.getJSON(ctx, "/approximateTerm.json", "approximate_match", params, &resp); err != nil {
		r.logger.Debug("rxnorm_lookup_failed", "operation", "approximate_match", "error", err)
		return nil
	}

	seen := map[string]bool{}
	var out []approximateCandidate
	for _, c := range resp.ApproximateGroup.Candidate {
		if c.RxCUI == "" || seen[c.RxCUI] {
			continue
		}
		seen[c.RxCUI] = true
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = r.conceptName(ctx, c.RxCUI)
		}
		if name == "" {
			continue
		}
		out = append(out, approximateCandidate{rxcui: c.RxCUI, name: name})
	}
	return out
}

func (r *Resolver) conceptName(ctx context.Context, rxcui string) string {
	var resp struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	}
	if err := r.client.getJSON(ctx, "/rxcui/"+url.PathEscape(rxcui)+"/properties.json", "concept_properties", nil, &resp); err != nil {
		r.logger.Debug("rxnorm_lookup_failed", "operation", "concept_properties", "error", err)
		return ""
	}
	return resp.Properties.Name
}

func (r *Resolver) spellingSuggestions(ctx context.Context, name string) []string {
	params := url.Values{}
	params.Set("name", name)

	var resp struct {
		SuggestionGroup struct {
			SuggestionList struct {
				Suggestion []string `json:"suggestion"`
			} `json:"suggestionList"`
		} `json:"suggestionGroup"`
	}
	if err := r.client.getJSON(ctx, "/spellingsuggestions.json", "spelling_suggestions", params, &resp); err != nil {
		r.logger.Debug("rxnorm_lookup_failed", "operation", "spelling_suggestions", "error", err)
		return nil
	}
	return resp.SuggestionGroup.SuggestionList.Suggestion
}

type relatedResponse struct {
	RelatedGroup struct {
		ConceptGroup []conceptGroup `json:"conceptGroup"`
	} `json:"relatedGroup"`
}

// relatedNames lists concept names related to rxcui by term type, e.g.
// "BN" for brand names or "IN MIN" for ingredient concepts.
func (r *Resolver) relatedNames(ctx context.Context, rxcui, tty string) []string {
	params := url.Values{}
	params.Set("tty", tty)

	var resp relatedResponse
	if err := r.client.getJSON(ctx, "/rxcui/"+url.PathEscape(rxcui)+"/related.json", "related_concepts", params, &resp); err != nil {
		r.logger.Debug("rxnorm_lookup_failed", "operation", "related_concepts", "error", err)
		return nil
	}

	var names []string
	for _, grp := range resp.RelatedGroup.ConceptGroup {
		for _, prop := range grp.ConceptProperties {
			if prop.Name != "" {
				names = append(names, prop.Name)
			}
		}
	}
	return uniqueFold(names)
}

func (r *Resolver) firstRelatedName(ctx context.Context, rxcui, tty string) string {
	names := r.relatedNames(ctx, rxcui, tty)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (r *Resolver) allRelated(ctx context.Context, rxcui string) []string {
	var resp struct {
		AllRelatedGroup struct {
			ConceptGroup []conceptGroup `json:"conceptGroup"`
		} `json:"allRelatedGroup"`
	}
	if err := r.client.getJSON(ctx, "/rxcui/"+url.PathEscape(rxcui)+"/allrelated.json", "all_related", nil, &resp); err != nil {
		r.logger.Debug("rxnorm_lookup_failed", "operation", "all_related", "error", err)
		return nil
	}

	var cuis []string
	for _, grp := range resp.AllRelatedGroup.ConceptGroup {
		for _, prop := range grp.ConceptProperties {
			if prop.RxCUI != "" {
				cuis = append(cuis, prop.RxCUI)
			}
		}
	}
	return uniqueFold(cuis)
}

// uniqueFold deduplicates case-insensitively while preserving order.
func uniqueFold(items []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		key := strings.ToUpper(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func containsFold(items []string, want string) bool {
	for _, item := range items {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}
