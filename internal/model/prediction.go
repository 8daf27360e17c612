package model

// Prediction is one ranked condition returned for a symptom query.
type Prediction struct {
	Condition      string `json:"condition"`
	Probability    int    `json:"probability"` // integer percent, 0-100
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// KnowledgeEntry is the descriptive text shown alongside a condition.
type KnowledgeEntry struct {
	Description    string `yaml:"description" json:"description"`
	Recommendation string `yaml:"recommendation" json:"recommendation"`
}
