package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crimson-sun/sympcheck/internal/model"
)

// ParseCSV reads a header-first CSV of symptom flags. The label column is
// the first header matching one of labelColumns (case-insensitive).
// Columns with a blank header, such as those produced by trailing commas,
// are dropped.
func ParseCSV(r io.Reader, source string, labelColumns []string) (model.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return model.Dataset{}, fmt.Errorf("%w: %s: empty file", ErrFormat, source)
	}
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %s: %v", ErrFormat, source, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var keep []int
	var cols []string
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		keep = append(keep, i)
		cols = append(cols, h)
	}

	label := ""
	for _, want := range labelColumns {
		for _, c := range cols {
			if strings.EqualFold(c, strings.TrimSpace(want)) {
				label = c
				break
			}
		}
		if label != "" {
			break
		}
	}
	if label == "" {
		return model.Dataset{}, fmt.Errorf("%w: %s: none of the label columns %v present", ErrFormat, source, labelColumns)
	}

	var rows [][]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Dataset{}, fmt.Errorf("%w: %s: %v", ErrFormat, source, err)
		}
		row := make([]string, len(keep))
		for j, i := range keep {
			if i >= len(rec) {
				return model.Dataset{}, fmt.Errorf("%w: %s: line %d has %d fields, want %d", ErrFormat, source, line, len(rec), len(header))
			}
			row[j] = rec[i]
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return model.Dataset{}, fmt.Errorf("%w: %s: no data rows", ErrFormat, source)
	}

	return model.Dataset{
		Columns:     cols,
		Rows:        rows,
		LabelColumn: label,
		Source:      source,
	}, nil
}

// ParseFile opens path and parses it with ParseCSV.
func ParseFile(path string, labelColumns []string) (model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Dataset{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return model.Dataset{}, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	defer f.Close()
	return ParseCSV(f, path, labelColumns)
}
