package sympcheck

// Prediction is one ranked condition.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Prediction struct {
	Condition      string `json:"condition"`
	Probability    int    `json:"probability"` // integer percent, 6-100 with the default threshold
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// Symptom is a recognized symptom code with a display name.
type Symptom struct {
	Code string `json:"code"` // e.g. "loss_of_taste_or_smell"
	Name string `json:"name"` // e.g. "Loss Of Taste Or Smell"
}
