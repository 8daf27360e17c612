package model

// Schema binds feature-vector slots to symptom codes and probability slots to
// condition names. A trained model is only meaningful together with the
// schema it was fitted against.
type Schema struct {
	Symptoms   []string `json:"symptoms"`   // vocabulary; index = feature slot
	Conditions []string `json:"conditions"` // label set; index = probability slot
}

// SymptomIndex maps each vocabulary code to its slot.
func (s Schema) SymptomIndex() map[string]int {
	m := make(map[string]int, len(s.Symptoms))
	for i, code := range s.Symptoms {
		m[code] = i
	}
	return m
}
