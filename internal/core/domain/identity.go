package domain

// MatchConfidence grades how a free-text drug name was resolved to a
// canonical identity.
type MatchConfidence string

const (
	MatchExact             MatchConfidence = "exact"
	MatchApproximate       MatchConfidence = "approximate"
	MatchSpellingCorrected MatchConfidence = "spelling_corrected"
	MatchNone              MatchConfidence = "none"
)

// DrugIdentity is the canonical resolution of a drug name. ResolvedName
// prefers the generic ingredient when one is known; with MatchNone it
// echoes the input unchanged so downstream lookups still have a term.
type DrugIdentity struct {
	Input              string          `json:"input"`
	ResolvedName       string          `json:"resolved_name"`
	RxCUI              string          `json:"rxcui,omitempty"`
	GenericName        string          `json:"generic_name,omitempty"`
	BrandNames         []string        `json:"brand_names,omitempty"`
	AllRxCUIs          []string        `json:"all_rxcuis,omitempty"`
	SpellingSuggestion string          `json:"spelling_suggestion,omitempty"`
	Confidence         MatchConfidence `json:"confidence"`
}

// UnresolvedIdentity is the passthrough identity used when no resolver is
// configured or resolution found nothing.
func UnresolvedIdentity(input string) DrugIdentity {
	return DrugIdentity{Input: input, ResolvedName: input, Confidence: MatchNone}
}

// PrimaryBrand returns the first known brand name, or empty.
func (d DrugIdentity) PrimaryBrand() string {
	if len(d.BrandNames) == 0 {
		return ""
	}
	return d.BrandNames[0]
}
