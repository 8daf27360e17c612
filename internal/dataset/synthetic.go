package dataset

import (
	"math/rand/v2"
	"strconv"

	"github.com/crimson-sun/sympcheck/internal/model"
)

// SyntheticSource is the Source recorded on generated datasets.
const SyntheticSource = "synthetic"

// SyntheticLabelColumn is the label column of generated datasets.
const SyntheticLabelColumn = "disease"

// SyntheticSymptoms is the fixed vocabulary of the fallback dataset.
var SyntheticSymptoms = []string{
	"fever", "cough", "fatigue", "difficulty_breathing",
	"headache", "sore_throat", "body_aches", "loss_of_taste_or_smell",
	"nausea", "diarrhea", "congestion", "chest_pain",
	"dizziness", "abdominal_pain", "rash",
}

// SyntheticConditions is the fixed label set of the fallback dataset.
var SyntheticConditions = []string{"COVID-19", "Common Cold", "Flu", "Migraine", "Food Poisoning"}

// Synthetic generates a schema-compatible stand-in dataset: every symptom
// flag is an independent coin flip and every label is drawn uniformly.
// Labels are independent of features, so a model trained on it has no
// predictive value; it exists only so the pipeline always has input.
// The same seed always yields the same rows.
func Synthetic(rows int, seed uint64) model.Dataset {
	rng := rand.New(rand.NewPCG(seed, 0x5eed))

	cols := make([]string, 0, len(SyntheticSymptoms)+1)
	cols = append(cols, SyntheticSymptoms...)
	cols = append(cols, SyntheticLabelColumn)

	data := make([][]string, rows)
	for i := range data {
		row := make([]string, len(cols))
		for j := range SyntheticSymptoms {
			row[j] = strconv.Itoa(rng.IntN(2))
		}
		row[len(row)-1] = SyntheticConditions[rng.IntN(len(SyntheticConditions))]
		data[i] = row
	}

	return model.Dataset{
		Columns:     cols,
		Rows:        data,
		LabelColumn: SyntheticLabelColumn,
		Source:      SyntheticSource,
		Synthetic:   true,
	}
}
