package dataset

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const maxEntryBytes = 512 << 20

var zipMagic = []byte("PK\x03\x04")

// Locate resolves path to a single CSV file. A file path is returned as is.
// For a directory, the first of preferred that exists directly inside it
// wins; otherwise the largest .csv anywhere below it is chosen, ties broken
// by path.
func Locate(path string, preferred []string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return "", fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	for _, name := range preferred {
		p := filepath.Join(path, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}

	type candidate struct {
		path string
		size int64
	}
	var found []candidate
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".csv") {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return err
		}
		found = append(found, candidate{p, st.Size()})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: scan %s: %v", ErrFormat, path, err)
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%w: no .csv file in %s", ErrFormat, path)
	}
	slices.SortFunc(found, func(a, b candidate) int {
		if a.size != b.size {
			if a.size > b.size {
				return -1
			}
			return 1
		}
		return strings.Compare(a.path, b.path)
	})
	return found[0].path, nil
}

// bundleDir is the cache directory for the bundle downloaded from url.
func bundleDir(cacheDir, url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(cacheDir, hex.EncodeToString(sum[:6]))
}

// unpack turns the downloaded payload at src into the directory dst. Zip
// archives are extracted; anything else is treated as a single CSV.
// dst is populated through a sibling temp dir and renamed into place.
func unpack(src, dst string) error {
	head := make([]byte, len(zipMagic))
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	n, _ := io.ReadFull(f, head)
	f.Close()

	tmp, err := os.MkdirTemp(filepath.Dir(dst), ".unpack-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	defer os.RemoveAll(tmp)

	if n == len(zipMagic) && bytes.Equal(head, zipMagic) {
		if err := extractZip(src, tmp); err != nil {
			return err
		}
	} else if err := os.Rename(src, filepath.Join(tmp, "dataset.csv")); err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}

	os.RemoveAll(dst)
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	return nil
}

func extractZip(src, dst string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("%w: open archive: %v", ErrFormat, err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := filepath.Clean(filepath.FromSlash(zf.Name))
		if !filepath.IsLocal(name) {
			return fmt.Errorf("%w: archive entry %q escapes the bundle", ErrFormat, zf.Name)
		}
		if err := extractEntry(zf, filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(zf *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFormat, zf.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxEntryBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFormat, zf.Name, err)
	}
	if n > maxEntryBytes {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrFormat, zf.Name, maxEntryBytes)
	}
	return nil
}
