package openfda

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	maxQueryTerms = 8
	minTermLen    = 3
)

// fallbackSearch matches every record that carries openFDA metadata. Used
// when the question reduces to no usable terms.
const fallbackSearch = "_exists_:openfda"

// BuildSearchQuery converts a free-text question into an openFDA search
// expression. With no fields the terms are joined as a plain full-text
// query; with fields each term becomes an OR-group over the fields and
// the groups are ANDed together.
func BuildSearchQuery(question string, fields []string) string {
	var terms []string
	for _, tok := range queryTokens(question) {
		if len(tok) >= minTermLen {
			terms = append(terms, tok)
			if len(terms) == maxQueryTerms {
				break
			}
		}
	}
	if len(terms) == 0 {
		return fallbackSearch
	}
	if len(fields) == 0 {
		return strings.Join(terms, " ")
	}

	groups := make([]string, 0, len(terms))
	for _, term := range terms {
		alts := make([]string, 0, len(fields))
		for _, field := range fields {
			alts = append(alts, fmt.Sprintf("%s:%s", field, term))
		}
		groups = append(groups, "("+strings.Join(alts, " OR ")+")")
	}
	return strings.Join(groups, " AND ")
}

// stopWords are question scaffolding that never names a drug.
var stopWords = map[string]struct{}{}

func init() {
	const words = "what are the is of for a an in on to and or how does do can " +
		"side effects warnings interactions dosage dose drug about with " +
		"tell me information info safety adverse reactions risk risks " +
		"taking taken take should i my does it its this that"
	for _, w := range strings.Fields(words) {
		stopWords[w] = struct{}{}
	}
}

// ExtractDrugName guesses the drug a question is about: the first token
// that is neither a stop word nor too short. Falls back to the trimmed
// question when nothing qualifies.
func ExtractDrugName(question string) string {
	for _, tok := range nameTokens(question) {
		if len(tok) < minTermLen {
			continue
		}
		if _, stop := stopWords[strings.ToLower(tok)]; stop {
			continue
		}
		return tok
	}
	return strings.TrimSpace(question)
}

// queryTokens lowercases and splits on anything non-alphanumeric.
func queryTokens(text string) []string {
	return splitRuns(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}, true)
}

// nameTokens keeps hyphens so names like co-trimoxazole survive, and
// preserves the original casing.
func nameTokens(text string) []string {
	return splitRuns(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'
	}, false)
}

func splitRuns(text string, keep func(rune) bool, lower bool) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		if keep(r) {
			if lower {
				r = unicode.ToLower(r)
			}
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}
