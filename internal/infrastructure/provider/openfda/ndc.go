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
	ndcSearchLimit = 10
	ndcFieldName   = "product_identity"
)

// ProductSummarizer fetches structured product metadata from the openFDA
// NDC Directory and renders it as one synthetic evidence record.
type ProductSummarizer struct {
	client *Client
}

func NewProductSummarizer(client *Client) *ProductSummarizer {
	return &ProductSummarizer{client: client}
}

type ndcRecord struct {
	BrandName         string `json:"brand_name"`
	GenericName       string `json:"generic_name"`
	LabelerName       string `json:"labeler_name"`
	ProductNDC        string `json:"product_ndc"`
	DosageForm        string `json:"dosage_form"`
	MarketingCategory string `json:"marketing_category"`
	ApplicationNumber string `json:"application_number"`
	ProductType       string `json:"product_type"`
	DEASchedule       string   `json:"dea_schedule"`
	Route             []string `json:"route"`
	ActiveIngredients []struct {
		Name     string `json:"name"`
		Strength string `json:"strength"`
	} `json:"active_ingredients"`
	Packaging []struct {
		PackageNDC string `json:"package_ndc"`
	} `json:"packaging"`
	OpenFDA struct {
		RxCUI         []string `json:"rxcui"`
		PharmClassEPC []string `json:"pharm_class_epc"`
		PharmClassMOA []string `json:"pharm_class_moa"`
		PharmClassCS  []string `json:"pharm_class_cs"`
	} `json:"openfda"`
}

type ndcResponse struct {
	Results []ndcRecord `json:"results"`
}

type activeIngredient struct {
	Name     string
	Strength string
}

// productMetadata is the merge of every NDC entry matched for one drug.
type productMetadata struct {
	BrandNames        []string
	GenericName       string
	Manufacturer      string
	ActiveIngredients []activeIngredient
	DosageForms       []string
	Routes            []string
	MarketingCategory string
	ApplicationNumber string
	ProductType       string
	PharmClassEPC     []string
	PharmClassMOA     []string
	PharmClassCS      []string
	DEASchedule       string
	ProductNDCs       []string
	RxCUIs            []string
}

// Summarize fetches product metadata for the resolved drug and renders it
// as a synthetic record. Like FAERS enrichment it is best effort: any
// failure or empty result yields nil.
func (s *ProductSummarizer) Summarize(ctx context.Context, identity domain.DrugIdentity) *domain.EvidenceRecord {
	generic := strings.TrimSpace(identity.GenericName)
	if generic == "" {
		generic = strings.TrimSpace(identity.ResolvedName)
	}
	if generic == "" {
		return nil
	}

	records := s.lookup(ctx, generic, identity.PrimaryBrand(), identity.RxCUI)
	if len(records) == 0 {
		return nil
	}

	meta := mergeNDCRecords(records, generic)
	text := formatProductIdentity(meta)
	if text == "" {
		return nil
	}

	docID := "ndc_" + strings.ReplaceAll(strings.ToLower(generic), " ", "_")
	return &domain.EvidenceRecord{
		DocID:  docID,
		Fields: []domain.FieldText{{Name: ndcFieldName, Text: text}},
	}
}

// lookup tries the most specific identifier first: RxCUI, then brand,
// then generic name.
func (s *ProductSummarizer) lookup(ctx context.Context, generic, brand, rxcui string) []ndcRecord {
	searches := make([]string, 0, 3)
	if rxcui != "" {
		searches = append(searches, fmt.Sprintf(`openfda.rxcui:"%s"`, rxcui))
	}
	if brand != "" {
		searches = append(searches, fmt.Sprintf(`brand_name:"%s"`, brand))
	}
	searches = append(searches, fmt.Sprintf(`generic_name:"%s"`, generic))

	for _, search := range searches {
		params := url.Values{}
		params.Set("search", search)
		params.Set("limit", strconv.Itoa(ndcSearchLimit))

		var resp ndcResponse
		if err := s.client.getJSON(ctx, s.client.ndcURL, "ndc", params, &resp); err != nil {
			continue
		}
		if len(resp.Results) > 0 {
			return resp.Results
		}
	}
	return nil
}

func mergeNDCRecords(records []ndcRecord, generic string) productMetadata {
	meta := productMetadata{GenericName: generic}

	var manufacturers, marketingCats, appNumbers, productTypes, deaSchedules []string
	seenIngredients := map[string]bool{}
	for _, rec := range records {
		if rec.BrandName != "" {
			meta.BrandNames = append(meta.BrandNames, rec.BrandName)
		}
		if rec.GenericName != "" && meta.GenericName == "" {
			meta.GenericName = rec.GenericName
		}
		if rec.LabelerName != "" {
			manufacturers = append(manufacturers, rec.LabelerName)
		}
		for _, ai := range rec.ActiveIngredients {
			if ai.Name == "" || seenIngredients[strings.ToUpper(ai.Name)] {
				continue
			}
			seenIngredients[strings.ToUpper(ai.Name)] = true
			meta.ActiveIngredients = append(meta.ActiveIngredients, activeIngredient{Name: ai.Name, Strength: ai.Strength})
		}
		for _, pkg := range rec.Packaging {
			if pkg.PackageNDC != "" {
				meta.ProductNDCs = append(meta.ProductNDCs, pkg.PackageNDC)
			}
		}
		if rec.ProductNDC != "" {
			meta.ProductNDCs = append(meta.ProductNDCs, rec.ProductNDC)
		}
		if rec.DosageForm != "" {
			meta.DosageForms = append(meta.DosageForms, rec.DosageForm)
		}
		for _, route := range rec.Route {
			if route != "" {
				meta.Routes = append(meta.Routes, route)
			}
		}
		if rec.MarketingCategory != "" {
			marketingCats = append(marketingCats, rec.MarketingCategory)
		}
		if rec.ApplicationNumber != "" {
			appNumbers = append(appNumbers, rec.ApplicationNumber)
		}
		if rec.ProductType != "" {
			productTypes = append(productTypes, rec.ProductType)
		}
		if rec.DEASchedule != "" {
			deaSchedules = append(deaSchedules, rec.DEASchedule)
		}
		meta.RxCUIs = append(meta.RxCUIs, rec.OpenFDA.RxCUI...)
		meta.PharmClassEPC = append(meta.PharmClassEPC, rec.OpenFDA.PharmClassEPC...)
		meta.PharmClassMOA = append(meta.PharmClassMOA, rec.OpenFDA.PharmClassMOA...)
		meta.PharmClassCS = append(meta.PharmClassCS, rec.OpenFDA.PharmClassCS...)
	}

	meta.BrandNames = uniqueUpper(meta.BrandNames)
	meta.DosageForms = uniqueUpper(meta.DosageForms)
	meta.Routes = uniqueUpper(meta.Routes)
	meta.PharmClassEPC = uniqueUpper(meta.PharmClassEPC)
	meta.PharmClassMOA = uniqueUpper(meta.PharmClassMOA)
	meta.PharmClassCS = uniqueUpper(meta.PharmClassCS)
	meta.ProductNDCs = uniqueUpper(meta.ProductNDCs)
	meta.RxCUIs = uniqueUpper(meta.RxCUIs)
	meta.Manufacturer = firstOf(uniqueUpper(manufacturers))
	meta.MarketingCategory = firstOf(uniqueUpper(marketingCats))
	meta.ApplicationNumber = firstOf(uniqueUpper(appNumbers))
	meta.ProductType = firstOf(uniqueUpper(productTypes))
	meta.DEASchedule = firstOf(uniqueUpper(deaSchedules))
	return meta
}

// formatProductIdentity renders the merged metadata as prose-ish lines so
// the chunker and rankers treat it like any label field.
func formatProductIdentity(meta productMetadata) string {
	if meta.GenericName == "" {
		return ""
	}

	brands := "N/A"
	if len(meta.BrandNames) > 0 {
		limit := len(meta.BrandNames)
		if limit > 5 {
			limit = 5
		}
		brands = strings.Join(meta.BrandNames[:limit], ", ")
	}

	lines := []string{fmt.Sprintf("PRODUCT IDENTITY: %s (%s)", brands, meta.GenericName)}
	appendLine := func(label string, values []string) {
		if len(values) > 0 {
			lines = append(lines, label+": "+strings.Join(values, "; "))
		}
	}

	if meta.Manufacturer != "" {
		lines = append(lines, "Manufacturer: "+meta.Manufacturer)
	}
	appendLine("Pharmacologic Class", meta.PharmClassEPC)
	appendLine("Mechanism of Action", meta.PharmClassMOA)
	appendLine("Chemical Structure", meta.PharmClassCS)
	appendLine("Dosage Forms", meta.DosageForms)
	appendLine("Route", meta.Routes)

	if len(meta.ActiveIngredients) > 0 {
		parts := make([]string, 0, len(meta.ActiveIngredients))
		for _, ai := range meta.ActiveIngredients {
			part := ai.Name
			if ai.Strength != "" {
				part += " " + ai.Strength
			}
			parts = append(parts, part)
		}
		lines = append(lines, "Active Ingredients: "+strings.Join(parts, "; "))
	}
	if meta.ProductType != "" {
		lines = append(lines, "Product Type: "+meta.ProductType)
	}
	if meta.MarketingCategory != "" {
		marketing := meta.MarketingCategory
		if meta.ApplicationNumber != "" {
			marketing += " (" + meta.ApplicationNumber + ")"
		}
		lines = append(lines, "Marketing: "+marketing)
	}
	if meta.DEASchedule != "" {
		lines = append(lines, "DEA Schedule: "+meta.DEASchedule)
	}
	return strings.Join(lines, "\n")
}

// uniqueUpper deduplicates by upper-cased key, preserving order and the
// first spelling seen.
func uniqueUpper(items []string) []string {
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

func firstOf(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[0]
}
