package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crimson-sun/sympcheck/internal/model"
	"github.com/crimson-sun/sympcheck/internal/output"
)

// --- mocks ---

// mockPredictor returns one prediction naming the first symptom it was given.
type mockPredictor struct {
	calls [][]string
}

func (m *mockPredictor) Predict(_ context.Context, codes []string) []model.Prediction {
	m.calls = append(m.calls, codes)
	if len(codes) == 0 {
		return []model.Prediction{}
	}
	return []model.Prediction{{Condition: "cond-" + codes[0], Probability: 50}}
}

// mockOutput records written results. Fails when failAfter writes have
// already succeeded (negative disables).
type mockOutput struct {
	results   []output.Result
	failAfter int
	closed    bool
}

func (m *mockOutput) Write(_ context.Context, r output.Result) error {
	if m.failAfter >= 0 && len(m.results) >= m.failAfter {
		return errors.New("mock: write failed")
	}
	m.results = append(m.results, r)
	return nil
}

func (m *mockOutput) Close() error {
	m.closed = true
	return nil
}

func newMocks() (*mockPredictor, *mockOutput) {
	return &mockPredictor{}, &mockOutput{failAfter: -1}
}

// --- tests ---

func TestQuery(t *testing.T) {
	pred, out := newMocks()
	p := New(pred, out)

	if err := p.Query(context.Background(), []string{"fever", "cough"}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []output.Result{{
		Symptoms:    []string{"fever", "cough"},
		Predictions: []model.Prediction{{Condition: "cond-fever", Probability: 50}},
	}}
	if diff := cmp.Diff(want, out.results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryNilSymptoms(t *testing.T) {
	pred, out := newMocks()
	if err := New(pred, out).Query(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if out.results[0].Symptoms == nil {
		t.Fatal("symptoms should be an empty slice, not nil")
	}
}

func TestStream(t *testing.T) {
	pred, out := newMocks()
	p := New(pred, out)

	input := strings.Join([]string{
		"fever, cough",
		"",
		"# comment",
		"  headache ,, nausea  ",
		"rash",
	}, "\n")

	n, err := p.Stream(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 queries, got %d", n)
	}
	want := [][]string{{"fever", "cough"}, {"headache", "nausea"}, {"rash"}}
	if diff := cmp.Diff(want, pred.calls); diff != "" {
		t.Fatalf("predictor calls mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamOutputError(t *testing.T) {
	pred := &mockPredictor{}
	out := &mockOutput{failAfter: 1}
	n, err := New(pred, out).Stream(context.Background(), strings.NewReader("a\nb\nc\n"))
	if err == nil {
		t.Fatal("expected output error")
	}
	if n != 1 {
		t.Fatalf("expected 1 query answered before failure, got %d", n)
	}
}

func TestStreamCancelled(t *testing.T) {
	pred, out := newMocks()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := New(pred, out).Stream(ctx, strings.NewReader("a\nb\n"))
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Fatalf("expected cancellation before any query, got n=%d err=%v", n, err)
	}
}

func TestClose(t *testing.T) {
	pred, out := newMocks()
	if err := New(pred, out).Close(); err != nil {
		t.Fatal(err)
	}
	if !out.closed {
		t.Fatal("Close should close the output")
	}
}

func TestParseSymptoms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"fever,cough", []string{"fever", "cough"}},
		{" fever , , skin rash ", []string{"fever", "skin rash"}},
		{"", []string{}},
		{",,", []string{}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParseSymptoms(tt.in)); diff != "" {
			t.Errorf("ParseSymptoms(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}
