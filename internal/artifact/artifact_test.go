package artifact

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/crimson-sun/sympcheck/internal/engine/forest"
	"github.com/crimson-sun/sympcheck/internal/model"
)

func testArtifact(t *testing.T) *Artifact {
	t.Helper()
	X := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	y := []int{0, 1, 2, 0, 1, 2}
	f, err := forest.Fit(context.Background(), X, y, 3, forest.Params{Trees: 4, Seed: 1})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	sch := model.Schema{
		Symptoms:   []string{"fever", "cough", "rash"},
		Conditions: []string{"Flu", "Common Cold", "Allergy"},
	}
	return New(sch, f, Meta{
		Source:    "test",
		Accuracy:  0.5,
		TrainRows: 6,
		Seed:      1,
		CreatedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	})
}

func encode(t *testing.T, a *Artifact) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

func TestNew_AssignsIDAndTime(t *testing.T) {
	a := New(model.Schema{}, nil, Meta{})
	if a.Meta.ID == "" {
		t.Error("expected generated ID")
	}
	if a.Meta.CreatedAt.IsZero() {
		t.Error("expected creation time")
	}
	b := New(model.Schema{}, nil, Meta{})
	if a.Meta.ID == b.Meta.ID {
		t.Error("IDs should be unique")
	}
}

func TestEncodeDecode(t *testing.T) {
	a := testArtifact(t)
	got, err := Decode(bytes.NewReader(encode(t, a)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Fatalf("artifact mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_RejectsCorruption(t *testing.T) {
	a := testArtifact(t)
	good := encode(t, a)
	hdrLen := int(binary.LittleEndian.Uint64(good[6:14]))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func([]byte) []byte { return nil }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"future version", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[4:6], 99); return b }},
		{"huge header", func(b []byte) []byte { binary.LittleEndian.PutUint64(b[6:14], 1<<40); return b }},
		{"truncated body", func(b []byte) []byte { return b[:len(b)-10] }},
		{"trailing bytes", func(b []byte) []byte { return append(b, '!') }},
		{"flipped model byte", func(b []byte) []byte { b[len(b)-2] ^= 0x01; return b }},
		{"renamed symptom", func(b []byte) []byte {
			hdr := string(b[14 : 14+hdrLen])
			hdr = strings.Replace(hdr, `"fever"`, `"fevor"`, 1)
			return append(append(b[:14:14], hdr...), b[14+hdrLen:]...)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(good))
			if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, ErrIncompatible) {
				t.Fatalf("expected ErrIncompatible, got %v", err)
			}
		})
	}
}

func TestCheck_DimensionMismatch(t *testing.T) {
	a := testArtifact(t)
	a.Schema.Symptoms = a.Schema.Symptoms[:2]
	if err := a.Check(); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected ErrIncompatible, got %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, a); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("Encode should refuse mismatched artifact, got %v", err)
	}

	b := testArtifact(t)
	b.Schema.Conditions = append(b.Schema.Conditions, "Extra")
	if err := b.Check(); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected ErrIncompatible, got %v", err)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "model.bin")
	s := NewStore(path)

	ok, err := s.Exists()
	if err != nil || ok {
		t.Fatalf("Exists before save = %v, %v", ok, err)
	}
	if _, err := s.Load(); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load before save: expected ErrNotExist, got %v", err)
	}

	a := testArtifact(t)
	if err := s.Save(a); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ok, err = s.Exists()
	if err != nil || !ok {
		t.Fatalf("Exists after save = %v, %v", ok, err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Fatalf("artifact mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact file, found %d entries", len(entries))
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "model.bin"))
	first := testArtifact(t)
	second := testArtifact(t)
	second.Meta.Source = "second"

	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta.ID != second.Meta.ID || got.Meta.Source != "second" {
		t.Fatalf("expected second artifact, got %+v", got.Meta)
	}
}

func TestStore_SavePersistenceFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(filepath.Join(blocker, "model.bin"))
	if err := s.Save(testArtifact(t)); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	if err := os.WriteFile(path, []byte("pickle data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected ErrIncompatible, got %v", err)
	}
}
