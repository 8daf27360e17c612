package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/sympcheck/internal/engine/forest"
	"github.com/crimson-sun/sympcheck/internal/engine/schema"
	"github.com/crimson-sun/sympcheck/internal/model"
)

// FormatVersion is the on-disk layout version written by Encode.
const FormatVersion uint16 = 1

var magic = [4]byte{'S', 'C', 'A', 'F'}

// maxHeaderLen bounds the JSON header so a corrupt length cannot trigger a
// huge allocation.
const maxHeaderLen = 64 << 20

var (
	// ErrIncompatible reports a stored artifact that cannot be served: wrong
	// magic or version, a schema that does not match its recorded hash, or a
	// model whose dimensions disagree with the schema.
	ErrIncompatible = errors.New("artifact: incompatible")

	// ErrPersistence reports a failure to create the storage location or to
	// write the artifact.
	ErrPersistence = errors.New("artifact: persistence failed")
)

// Meta describes how an artifact was produced.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Synthetic bool      `json:"synthetic"` // trained on random labels; not for production use
	Accuracy  float64   `json:"accuracy"`  // holdout accuracy
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	Seed      uint64    `json:"seed"`
}

// Artifact is a trained classifier bundled with the schema it was fitted
// against. It is read-only once built.
type Artifact struct {
	Meta   Meta
	Schema model.Schema
	Forest *forest.Forest
}

// New bundles a schema and forest, assigning an ID and creation time when
// meta leaves them unset.
func New(sch model.Schema, f *forest.Forest, meta Meta) *Artifact {
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	return &Artifact{Meta: meta, Schema: sch, Forest: f}
}

// SchemaHash returns the digest of the artifact's schema.
func (a *Artifact) SchemaHash() string {
	return schema.Hash(a.Schema)
}

// Check verifies that the forest dimensions agree with the schema.
func (a *Artifact) Check() error {
	if a.Forest == nil {
		return fmt.Errorf("%w: no model", ErrIncompatible)
	}
	if err := a.Forest.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	if a.Forest.NumFeatures != len(a.Schema.Symptoms) {
		return fmt.Errorf("%w: model has %d features, schema has %d symptoms",
			ErrIncompatible, a.Forest.NumFeatures, len(a.Schema.Symptoms))
	}
	if a.Forest.NumClasses != len(a.Schema.Conditions) {
		return fmt.Errorf("%w: model has %d classes, schema has %d conditions",
			ErrIncompatible, a.Forest.NumClasses, len(a.Schema.Conditions))
	}
	return nil
}

// header is the JSON block between the fixed preamble and the model body.
type header struct {
	Meta       Meta         `json:"meta"`
	Schema     model.Schema `json:"schema"`
	SchemaHash string       `json:"schema_hash"`
	BodySHA256 string       `json:"body_sha256"`
	BodyLength int          `json:"body_length"`
}

// Encode writes the artifact as:
//
//	magic "SCAF" | uint16 LE version | uint64 LE header length | header JSON | model JSON
func Encode(w io.Writer, a *Artifact) error {
	if err := a.Check(); err != nil {
		return err
	}
	body, err := json.Marshal(a.Forest)
	if err != nil {
		return fmt.Errorf("artifact: marshal model: %w", err)
	}
	sum := sha256.Sum256(body)
	hdr, err := json.Marshal(header{
		Meta:       a.Meta,
		Schema:     a.Schema,
		SchemaHash: a.SchemaHash(),
		BodySHA256: hex.EncodeToString(sum[:]),
		BodyLength: len(body),
	})
	if err != nil {
		return fmt.Errorf("artifact: marshal header: %w", err)
	}

	var pre [14]byte
	copy(pre[:4], magic[:])
	binary.LittleEndian.PutUint16(pre[4:6], FormatVersion)
	binary.LittleEndian.PutUint64(pre[6:14], uint64(len(hdr)))
	for _, chunk := range [][]byte{pre[:], hdr, body} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("artifact: write: %w", err)
		}
	}
	return nil
}

// Decode reads an artifact written by Encode and verifies it end to end.
// Any mismatch is reported as ErrIncompatible.
func Decode(r io.Reader) (*Artifact, error) {
	var pre [14]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, fmt.Errorf("%w: short preamble: %v", ErrIncompatible, err)
	}
	if !bytes.Equal(pre[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrIncompatible, pre[:4])
	}
	if v := binary.LittleEndian.Uint16(pre[4:6]); v != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrIncompatible, v, FormatVersion)
	}
	hdrLen := binary.LittleEndian.Uint64(pre[6:14])
	if hdrLen == 0 || hdrLen > maxHeaderLen {
		return nil, fmt.Errorf("%w: header length %d", ErrIncompatible, hdrLen)
	}

	hdrBytes := make([]byte, hdrLen)
	if _, err := io.ReadFull(r, hdrBytes); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrIncompatible, err)
	}
	var hdr header
	if err := json.Unmarshal(hdrBytes, &hdr); err != nil {
		return nil, fmt.Errorf("%w: parse header: %v", ErrIncompatible, err)
	}
	if got := schema.Hash(hdr.Schema); got != hdr.SchemaHash {
		return nil, fmt.Errorf("%w: schema hash %s, recorded %s", ErrIncompatible, got, hdr.SchemaHash)
	}

	body, err := io.ReadAll(io.LimitReader(r, int64(hdr.BodyLength)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read model: %v", ErrIncompatible, err)
	}
	if len(body) != hdr.BodyLength {
		return nil, fmt.Errorf("%w: model is %d bytes, recorded %d", ErrIncompatible, len(body), hdr.BodyLength)
	}
	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != hdr.BodySHA256 {
		return nil, fmt.Errorf("%w: model checksum mismatch", ErrIncompatible)
	}
	var f forest.Forest
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("%w: parse model: %v", ErrIncompatible, err)
	}

	a := &Artifact{Meta: hdr.Meta, Schema: hdr.Schema, Forest: &f}
	if err := a.Check(); err != nil {
		return nil, err
	}
	return a, nil
}
