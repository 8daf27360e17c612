package model

// Dataset is a tabular training set of symptom-flag rows labeled by condition.
// It is produced by the dataset provider and consumed once per training run.
type Dataset struct {
	Columns     []string   // header names, label column included
	Rows        [][]string // one cell per column
	LabelColumn string     // name of the column holding the condition
	Source      string     // where the rows came from (URL, file path, "synthetic")
	Synthetic   bool       // labels are random; a model trained on this carries no signal
}

// LabelIndex returns the position of the label column, or -1.
func (d Dataset) LabelIndex() int {
	for i, c := range d.Columns {
		if c == d.LabelColumn {
			return i
		}
	}
	return -1
}
