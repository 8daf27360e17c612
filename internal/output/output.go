package output

import (
	"context"

	"github.com/crimson-sun/sympcheck/internal/model"
)

// Result is one answered symptom query.
type Result struct {
	Symptoms    []string           `json:"symptoms"`
	Predictions []model.Prediction `json:"predictions"`
}

// Output defines the interface for prediction result destinations.
type Output interface {
	Write(ctx context.Context, r Result) error
	Close() error
}
