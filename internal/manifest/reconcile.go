package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// CountSamples counts the result rows of a CSV sink. The first record is the
// header; repeated header rows written by concurrent children are skipped.
func CountSamples(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var header []string
	count := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("read results: %w", err)
		}
		if header == nil {
			header = slices.Clone(rec)
			continue
		}
		if slices.Equal(rec, header) {
			continue
		}
		count++
	}
}

// Reconciliation compares a manifest with the samples actually collected.
type Reconciliation struct {
	Expected int
	Actual   int
}

// Missing is the number of samples never collected.
func (r Reconciliation) Missing() int {
	if r.Actual >= r.Expected {
		return 0
	}
	return r.Expected - r.Actual
}

// Complete reports whether every expected sample is present.
func (r Reconciliation) Complete() bool { return r.Actual == r.Expected }

func (r Reconciliation) String() string {
	return fmt.Sprintf("%d of %d samples", r.Actual, r.Expected)
}

// Reconcile counts the rows of the CSV sink and compares them with m.
func Reconcile(m *Manifest, csvPath string) (Reconciliation, error) {
	actual, err := CountSamples(csvPath)
	if err != nil {
		return Reconciliation{Expected: m.ExpectedSamples()}, err
	}
	return Reconciliation{Expected: m.ExpectedSamples(), Actual: actual}, nil
}
