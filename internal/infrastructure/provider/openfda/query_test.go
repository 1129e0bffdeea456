package openfda

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSearchQueryPlainTerms(t *testing.T) {
	got := BuildSearchQuery("Does ibuprofen cause stomach bleeding?", nil)
	assert.Equal(t, "does ibuprofen cause stomach bleeding", got)
}

func TestBuildSearchQueryDropsShortTerms(t *testing.T) {
	got := BuildSearchQuery("is it ok to mix aspirin", nil)
	assert.Equal(t, "mix aspirin", got)
}

func TestBuildSearchQueryCapsTerms(t *testing.T) {
	got := BuildSearchQuery("one two alpha beta gamma delta epsilon zeta theta iota kappa", nil)
	assert.Equal(t, "one two alpha beta gamma delta epsilon zeta", got)
}

func TestBuildSearchQueryFieldGroups(t *testing.T) {
	got := BuildSearchQuery("warfarin bleeding", []string{"warnings", "adverse_reactions"})
	want := "(warnings:warfarin OR adverse_reactions:warfarin) AND (warnings:bleeding OR adverse_reactions:bleeding)"
	assert.Equal(t, want, got)
}

func TestBuildSearchQueryFallback(t *testing.T) {
	assert.Equal(t, fallbackSearch, BuildSearchQuery("a of to", nil))
	assert.Equal(t, fallbackSearch, BuildSearchQuery("", []string{"warnings"}))
}

func TestExtractDrugName(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"What are the side effects of metformin?", "metformin"},
		{"ibuprofen dosage information", "ibuprofen"},
		{"Tell me about co-trimoxazole interactions", "co-trimoxazole"},
		{"Can I take Lipitor with grapefruit?", "Lipitor"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractDrugName(tc.question), "question: %s", tc.question)
	}
}

func TestExtractDrugNameFallsBackToQuestion(t *testing.T) {
	assert.Equal(t, "what is it", ExtractDrugName("  what is it "))
}

func TestCleanText(t *testing.T) {
	in := "<p>Stop use  and ask a doctor if</p>\n\n  pain &amp; fever persist"
	assert.Equal(t, "Stop use and ask a doctor if pain & fever persist", cleanText(in))
}

func TestDeriveDocID(t *testing.T) {
	assert.Equal(t, "abc-123", deriveDocID(map[string]any{"id": "abc-123"}, 0))
	assert.Equal(t, "set-9", deriveDocID(map[string]any{"set_id": "set-9"}, 0))
	assert.Equal(t, "ADVIL", deriveDocID(map[string]any{
		"openfda": map[string]any{"brand_name": []any{"ADVIL"}},
	}, 0))
	assert.Equal(t, "record_3", deriveDocID(map[string]any{}, 2))
}

func TestFieldPolicyAdmission(t *testing.T) {
	p := &Provider{policy: DefaultFieldPolicy().normalize()}
	assert.True(t, p.admits("warnings"))
	assert.False(t, p.admits("openfda"))
	assert.False(t, p.admits("dosage_and_administration_table"))

	p = &Provider{policy: FieldPolicy{Allowlist: []string{"warnings"}, MinChars: 1}}
	assert.True(t, p.admits("warnings"))
	assert.False(t, p.admits("adverse_reactions"))
}

func TestNormalizeFieldValueJoinsListParts(t *testing.T) {
	got := normalizeFieldValue([]any{"Keep out of reach", "  ", "of children."})
	assert.Equal(t, "Keep out of reach of children.", got)
	assert.Equal(t, "", normalizeFieldValue(42.0))
}
