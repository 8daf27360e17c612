package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/sympcheck/internal/model"
)

// ErrFormat reports a dataset whose shape cannot be turned into a schema.
var ErrFormat = errors.New("schema: invalid dataset")

// Build derives the schema from a dataset and encodes its rows.
// Feature columns are every column except the label column, in dataset order.
// Conditions are the distinct label values in first-seen order.
// Rows with an empty label are skipped.
func Build(ds model.Dataset) (model.Schema, [][]float64, []int, error) {
	labelIdx := ds.LabelIndex()
	if labelIdx < 0 {
		return model.Schema{}, nil, nil, fmt.Errorf("%w: label column %q not found", ErrFormat, ds.LabelColumn)
	}

	var sch model.Schema
	featureCols := make([]int, 0, len(ds.Columns)-1)
	seen := make(map[string]int, len(ds.Columns))
	for i, col := range ds.Columns {
		if i == labelIdx {
			continue
		}
		code := NormalizeCode(col)
		if code == "" {
			return model.Schema{}, nil, nil, fmt.Errorf("%w: column %d has an empty name", ErrFormat, i)
		}
		if prev, dup := seen[code]; dup {
			return model.Schema{}, nil, nil, fmt.Errorf("%w: columns %d and %d both normalize to %q", ErrFormat, prev, i, code)
		}
		seen[code] = i
		sch.Symptoms = append(sch.Symptoms, code)
		featureCols = append(featureCols, i)
	}
	if len(sch.Symptoms) == 0 {
		return model.Schema{}, nil, nil, fmt.Errorf("%w: no feature columns", ErrFormat)
	}

	condIdx := map[string]int{}
	features := make([][]float64, 0, len(ds.Rows))
	labels := make([]int, 0, len(ds.Rows))
	for r, row := range ds.Rows {
		if len(row) != len(ds.Columns) {
			return model.Schema{}, nil, nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrFormat, r, len(row), len(ds.Columns))
		}
		cond := strings.TrimSpace(row[labelIdx])
		if cond == "" {
			continue
		}
		vec := make([]float64, len(featureCols))
		for j, c := range featureCols {
			v, err := parseFlag(row[c])
			if err != nil {
				return model.Schema{}, nil, nil, fmt.Errorf("%w: row %d column %q: %v", ErrFormat, r, ds.Columns[c], err)
			}
			vec[j] = v
		}
		id, ok := condIdx[cond]
		if !ok {
			id = len(sch.Conditions)
			condIdx[cond] = id
			sch.Conditions = append(sch.Conditions, cond)
		}
		features = append(features, vec)
		labels = append(labels, id)
	}
	if len(features) == 0 {
		return model.Schema{}, nil, nil, fmt.Errorf("%w: no labeled rows", ErrFormat)
	}
	return sch, features, labels, nil
}

// Encode builds the feature vector for a set of symptom codes. The vector has
// one slot per vocabulary entry; codes outside the vocabulary are ignored.
func Encode(sch model.Schema, index map[string]int, codes []string) []float64 {
	vec := make([]float64, len(sch.Symptoms))
	for _, c := range codes {
		if i, ok := index[NormalizeCode(c)]; ok {
			vec[i] = 1
		}
	}
	return vec
}

// NormalizeCode canonicalizes a symptom code or column header: NFKC, case
// folded, trimmed, with inner runs of whitespace collapsed to "_".
// Casers hold state, so each call builds its own.
func NormalizeCode(s string) string {
	s = cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), "_")
}

// DisplayName turns a symptom code into a human-readable label,
// e.g. "loss_of_taste_or_smell" becomes "Loss Of Taste Or Smell".
func DisplayName(code string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(code, "_", " "))
}

// Hash returns a stable digest of the ordered vocabulary and condition set.
// Two schemas hash equal only if every slot refers to the same name.
func Hash(sch model.Schema) string {
	h := sha256.New()
	writeList(h, "symptoms", sch.Symptoms)
	writeList(h, "conditions", sch.Conditions)
	return hex.EncodeToString(h.Sum(nil))
}

func writeList(h io.Writer, name string, items []string) {
	fmt.Fprintf(h, "%s:%d\n", name, len(items))
	for _, it := range items {
		fmt.Fprintf(h, "%d:%s\n", len(it), it)
	}
}

// parseFlag reads a symptom cell. Blank and zero mean absent; any other
// number means present.
func parseFlag(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	if v != 0 {
		return 1, nil
	}
	return 0, nil
}
