package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_FallbackConditionsPresent(t *testing.T) {
	kb := Default()
	for _, name := range []string{"COVID-19", "Common Cold", "Flu", "Migraine", "Food Poisoning"} {
		if !kb.Has(name) {
			t.Errorf("expected built-in entry for %q", name)
		}
		e := kb.Lookup(name)
		if e.Description == FallbackDescription {
			t.Errorf("%q: got fallback description", name)
		}
		if e.Recommendation == FallbackRecommendation {
			t.Errorf("%q: got fallback recommendation", name)
		}
	}
}

func TestLookup_Known(t *testing.T) {
	kb := Default()
	e := kb.Lookup("Flu")
	if e.Description != "A contagious respiratory illness caused by influenza viruses." {
		t.Fatalf("unexpected description: %q", e.Description)
	}
}

func TestLookup_CaseAndSpaceInsensitive(t *testing.T) {
	kb := Default()
	// Kaggle labels carry trailing spaces and mixed case.
	for _, name := range []string{"Hypertension ", "hypertension", " HYPERTENSION"} {
		if !kb.Has(name) {
			t.Errorf("Has(%q) = false", name)
		}
		if got := kb.Lookup(name).Description; got == FallbackDescription {
			t.Errorf("Lookup(%q) fell back", name)
		}
	}
}

func TestLookup_UnknownConditionGetsFallback(t *testing.T) {
	kb := Default()
	e := kb.Lookup("Dragon Pox")
	if e.Description != FallbackDescription {
		t.Errorf("Description = %q, want fallback", e.Description)
	}
	if e.Recommendation != FallbackRecommendation {
		t.Errorf("Recommendation = %q, want fallback", e.Recommendation)
	}
	if kb.Has("Dragon Pox") {
		t.Error("Has should be false for unknown condition")
	}
}

func TestLoad_MergesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	content := `
Flu:
  description: Overridden flu text.
  recommendation: Overridden advice.
Dragon Pox:
  description: Scales everywhere.
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	kb, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := kb.Lookup("Flu").Description; got != "Overridden flu text." {
		t.Errorf("Flu description = %q", got)
	}
	dp := kb.Lookup("Dragon Pox")
	if dp.Description != "Scales everywhere." {
		t.Errorf("Dragon Pox description = %q", dp.Description)
	}
	// Partial entry: recommendation filled from fallback.
	if dp.Recommendation != FallbackRecommendation {
		t.Errorf("Dragon Pox recommendation = %q, want fallback", dp.Recommendation)
	}
	if len(kb.entries) != len(Default().entries)+1 {
		t.Errorf("entries = %d, want %d", len(kb.entries), len(Default().entries)+1)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	kb, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(kb.entries) != len(Default().entries) {
		t.Errorf("entries = %d, want %d", len(kb.entries), len(Default().entries))
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- just\n- a list\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed table")
	}
}

func TestLoad_OverrideReplacesDifferentlyCasedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	content := `
flu:
  description: Lowercase override.
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		kb, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		for _, name := range []string{"Flu", "flu", "FLU"} {
			if got := kb.Lookup(name).Description; got != "Lowercase override." {
				t.Fatalf("run %d: Lookup(%q).Description = %q", i, name, got)
			}
		}
		if len(kb.entries) != len(Default().entries) {
			t.Fatalf("entries = %d, want %d", len(kb.entries), len(Default().entries))
		}
	}
}

func TestLoad_RejectsCaseCollidingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	content := `
Dragon Pox:
  description: One.
dragon pox:
  description: Two.
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for keys that differ only in case")
	}
}
