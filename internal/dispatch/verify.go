package dispatch

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/dkoosis/sweep/internal/manifest"
)

// Verification is the outcome of Verify.
type Verification struct {
	Manifest *manifest.Manifest
	CSV      string
	manifest.Reconciliation
}

// Verify compares the manifest in dir with the rows of its CSV sink. csv
// overrides the sink recorded in the manifest; relative sinks resolve
// against dir, where batch runs write them.
func Verify(dir, csv string) (*Verification, error) {
	m, err := manifest.Read(dir)
	if err != nil {
		return nil, err
	}
	if csv == "" {
		csv = m.Output
		if !filepath.IsAbs(csv) {
			csv = filepath.Join(dir, csv)
		}
	}
	rec, err := manifest.Reconcile(m, csv)
	// A sink that was never created holds no samples.
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return &Verification{Manifest: m, CSV: csv, Reconciliation: rec}, nil
}

func jsonValid(s string) bool { return json.Valid([]byte(s)) }
