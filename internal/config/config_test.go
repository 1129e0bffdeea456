package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("APIPort = %s", cfg.APIPort)
	}
	if cfg.NATSSubject != "telemetry.interactions" {
		t.Fatalf("NATSSubject = %s", cfg.NATSSubject)
	}
	if cfg.WordsPerChunk != 250 || cfg.ChunkOverlap != 40 {
		t.Fatalf("chunking defaults = %d/%d", cfg.WordsPerChunk, cfg.ChunkOverlap)
	}
	if cfg.FusionRRFK != 60 || cfg.TopK != 5 {
		t.Fatalf("retrieval defaults = k%d top%d", cfg.FusionRRFK, cfg.TopK)
	}
	if !cfg.RxNormEnabled || cfg.RxNormBaseURL != "https://rxnav.nlm.nih.gov/REST" {
		t.Fatalf("rxnorm defaults = %v %s", cfg.RxNormEnabled, cfg.RxNormBaseURL)
	}
	if !cfg.OpenFDAWithProducts || cfg.OpenFDANDCURL != "https://api.fda.gov/drug/ndc.json" {
		t.Fatalf("ndc defaults = %v %s", cfg.OpenFDAWithProducts, cfg.OpenFDANDCURL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "7")
	t.Setenv("OPENFDA_WITH_EVENTS", "false")
	t.Setenv("RXNORM_ENABLED", "false")
	t.Setenv("REFUSAL_THRESHOLD", "0.35")

	cfg := Load()
	if cfg.TopK != 7 {
		t.Fatalf("TopK = %d", cfg.TopK)
	}
	if cfg.OpenFDAWithEvents {
		t.Fatal("OpenFDAWithEvents should be false")
	}
	if cfg.RxNormEnabled {
		t.Fatal("RxNormEnabled should be false")
	}
	if cfg.RefusalThreshold != 0.35 {
		t.Fatalf("RefusalThreshold = %f", cfg.RefusalThreshold)
	}
}

func TestLoadEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "many")
	t.Setenv("OPENFDA_WITH_EVENTS", "yep")

	cfg := Load()
	if cfg.TopK != 5 {
		t.Fatalf("TopK = %d, want default 5", cfg.TopK)
	}
	if !cfg.OpenFDAWithEvents {
		t.Fatal("OpenFDAWithEvents should fall back to true")
	}
}

func TestLoadFieldPolicyFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := []byte(`
allowlist:
  - warnings
  - adverse_reactions
blocklist:
  - openfda
include_table_fields: false
min_chars: 60
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	cfg := Config{FieldPolicyPath: path}
	policy, err := cfg.LoadFieldPolicy()
	if err != nil {
		t.Fatalf("LoadFieldPolicy() error = %v", err)
	}
	if len(policy.Allowlist) != 2 || policy.Allowlist[0] != "warnings" {
		t.Fatalf("allowlist = %v", policy.Allowlist)
	}
	if policy.MinChars != 60 {
		t.Fatalf("min chars = %d", policy.MinChars)
	}
}

func TestLoadFieldPolicyDefaults(t *testing.T) {
	policy, err := Config{}.LoadFieldPolicy()
	if err != nil {
		t.Fatalf("LoadFieldPolicy() error = %v", err)
	}
	if len(policy.Blocklist) == 0 {
		t.Fatal("default policy should block metadata fields")
	}
}

func TestLoadFieldPolicyMissingFile(t *testing.T) {
	if _, err := (Config{FieldPolicyPath: "/nonexistent/policy.yaml"}).LoadFieldPolicy(); err == nil {
		t.Fatal("expected error for missing policy file")
	}
}
