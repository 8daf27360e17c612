package output

import "github.com/crimson-sun/sympcheck/internal/model"

// Verbosity controls which prediction fields are emitted.
type Verbosity int

const (
	// Standard emits every field.
	Standard Verbosity = iota
	// Minimal emits only condition and probability.
	Minimal
)

// ParseVerbosity maps a flag value to a Verbosity, defaulting to Standard.
func ParseVerbosity(s string) Verbosity {
	if s == "minimal" {
		return Minimal
	}
	return Standard
}

// Brief is a prediction stripped to its ranking.
type Brief struct {
	Condition   string `json:"condition"`
	Probability int    `json:"probability"`
}

// FormatResult returns the value to encode for r at verbosity.
// At Minimal, description and recommendation are dropped.
func FormatResult(r Result, verbosity Verbosity) any {
	if verbosity != Minimal {
		if r.Predictions == nil {
			r.Predictions = []model.Prediction{}
		}
		return r
	}
	brief := make([]Brief, len(r.Predictions))
	for i, p := range r.Predictions {
		brief[i] = Brief{Condition: p.Condition, Probability: p.Probability}
	}
	return struct {
		Symptoms    []string `json:"symptoms"`
		Predictions []Brief  `json:"predictions"`
	}{r.Symptoms, brief}
}
