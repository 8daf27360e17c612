package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/crimson-sun/sympcheck/internal/model"
	"github.com/crimson-sun/sympcheck/internal/output"
)

// Predicter ranks conditions for a symptom set. predictor.Predictor
// satisfies it.
type Predicter interface {
	Predict(ctx context.Context, codes []string) []model.Prediction
}

// Pipeline connects a predictor and an output.
type Pipeline struct {
	predictor Predicter
	output    output.Output
}

// New creates a Pipeline from the given components.
func New(pred Predicter, out output.Output) *Pipeline {
	return &Pipeline{
		predictor: pred,
		output:    out,
	}
}

// Query answers a single symptom set.
func (p *Pipeline) Query(ctx context.Context, symptoms []string) error {
	if symptoms == nil {
		symptoms = []string{}
	}
	res := output.Result{Symptoms: symptoms, Predictions: p.predictor.Predict(ctx, symptoms)}
	if err := p.output.Write(ctx, res); err != nil {
		return fmt.Errorf("pipeline output: %w", err)
	}
	return nil
}

// Stream answers one query per line of r until EOF or ctx is cancelled.
// Each line is a comma-separated symptom list; blank lines and lines
// starting with '#' are skipped. It returns the number of queries answered.
func (p *Pipeline) Stream(ctx context.Context, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := p.Query(ctx, ParseSymptoms(line)); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("pipeline read: %w", err)
	}
	return n, nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}

// ParseSymptoms splits a comma-separated list, trimming items and dropping
// empty ones.
func ParseSymptoms(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
