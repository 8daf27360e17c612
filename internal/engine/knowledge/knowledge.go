package knowledge

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/sympcheck/internal/model"
)

//go:embed knowledge.yaml
var defaultYAML []byte

// Generic text for conditions that have no entry in the table.
const (
	FallbackDescription    = "A medical condition requiring attention."
	FallbackRecommendation = "Consult with a healthcare professional for proper diagnosis and treatment."
)

// Base is a read-only table from condition name to descriptive text.
// Safe for concurrent use once built.
type Base struct {
	entries map[string]model.KnowledgeEntry
	folded  map[string]model.KnowledgeEntry
}

// Default returns the built-in table. It panics if the embedded YAML is
// malformed, which can only happen through a broken build.
func Default() *Base {
	entries, err := parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("knowledge: embedded table: %v", err))
	}
	return newBase(entries)
}

// Load returns the built-in table with the entries from the YAML file at path
// merged over it. An empty path yields the built-in table.
func Load(path string) (*Base, error) {
	entries, err := parse(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embedded table: %w", err)
	}
	if path == "" {
		return newBase(entries), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: %w", err)
	}
	extra, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge: %s: %w", path, err)
	}
	// An override replaces the built-in entry whatever its case.
	for name := range entries {
		for override := range extra {
			if strings.EqualFold(name, override) {
				delete(entries, name)
			}
		}
	}
	maps.Copy(entries, extra)
	return newBase(entries), nil
}

// Lookup returns the entry for condition. Conditions absent from the table
// get the generic fallback pair; missing fields of a partial entry are
// filled from the fallback too.
func (b *Base) Lookup(condition string) model.KnowledgeEntry {
	name := strings.TrimSpace(condition)
	e, ok := b.entries[name]
	if !ok {
		e = b.folded[strings.ToLower(name)]
	}
	if e.Description == "" {
		e.Description = FallbackDescription
	}
	if e.Recommendation == "" {
		e.Recommendation = FallbackRecommendation
	}
	return e
}

// Has reports whether the table holds an entry for condition.
func (b *Base) Has(condition string) bool {
	name := strings.TrimSpace(condition)
	if _, ok := b.entries[name]; ok {
		return true
	}
	_, ok := b.folded[strings.ToLower(name)]
	return ok
}

func parse(data []byte) (map[string]model.KnowledgeEntry, error) {
	entries := map[string]model.KnowledgeEntry{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out := make(map[string]model.KnowledgeEntry, len(entries))
	seen := make(map[string]string, len(entries))
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		key := strings.TrimSpace(name)
		folded := strings.ToLower(key)
		if prev, ok := seen[folded]; ok {
			return nil, fmt.Errorf("conditions %q and %q differ only in case or spacing", prev, name)
		}
		seen[folded] = name
		out[key] = entries[name]
	}
	return out, nil
}

func newBase(entries map[string]model.KnowledgeEntry) *Base {
	b := &Base{
		entries: make(map[string]model.KnowledgeEntry, len(entries)),
		folded:  make(map[string]model.KnowledgeEntry, len(entries)),
	}
	for name, e := range entries {
		b.entries[name] = e
		b.folded[strings.ToLower(name)] = e
	}
	return b
}
