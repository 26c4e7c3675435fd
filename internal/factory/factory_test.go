package factory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/sweep/internal/job"
)

// makeDataDir lays out inputs the way the data generator does.
func makeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, rel := range []string{
		"ascending/n_10.gz",
		"random/n_10.gz",
		"random/n_100.gz",
		"strange/n_10.gz",
		"random/details.txt",
	} {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	return dir
}

func baseOptions(dir string) Options {
	return Options{
		DataDir:          dir,
		Exec:             "/opt/qst",
		Methods:          []string{"insertion", "merge", "quick"},
		ThresholdMethods: []string{"merge", "quick"},
		Thresholds:       []int{4, 8, 16},
		Runs:             5,
		Output:           "/tmp/out.csv",
		ProfileDir:       "/tmp/valgrind",
	}
}

func drain(plan *Plan) []*job.Job {
	var jobs []*job.Job
	for {
		j, ok := plan.Queue.TryPop()
		if !ok {
			return jobs
		}
		jobs = append(jobs, j)
	}
}

func TestBuild_EnumeratesEveryCombination_When_BaseOnly(t *testing.T) {
	t.Parallel()

	plan, err := Build(baseOptions(makeDataDir(t)))
	require.NoError(t, err)

	// N × (K×T + (M−K)) = 4 × (2×3 + 1)
	assert.Equal(t, 4, plan.Inputs)
	assert.Equal(t, 28, plan.Jobs)
	assert.Equal(t, 28, plan.Commands)
	assert.Len(t, drain(plan), 28)
}

func TestBuild_ExpandsOneJobPerMode_When_PerModeExpansion(t *testing.T) {
	t.Parallel()

	opts := baseOptions(makeDataDir(t))
	opts.Modes = []job.Mode{job.ModeBase, job.ModeCallgrind, job.ModeMassif}
	plan, err := Build(opts)
	require.NoError(t, err)

	jobs := drain(plan)
	assert.Len(t, jobs, 28*3)
	assert.Equal(t, 28*3, plan.Commands)
	for _, j := range jobs {
		assert.Equal(t, 1, j.Len())
	}
}

func TestBuild_PutsModesInOneJob_When_CombinedExpansion(t *testing.T) {
	t.Parallel()

	opts := baseOptions(makeDataDir(t))
	opts.Modes = []job.Mode{job.ModeCachegrind, job.ModeBase}
	opts.Expansion = Combined
	plan, err := Build(opts)
	require.NoError(t, err)

	assert.Equal(t, 28, plan.Jobs)
	assert.Equal(t, 56, plan.Commands)
	for _, j := range drain(plan) {
		assert.Equal(t, []job.Mode{job.ModeBase, job.ModeCachegrind}, j.Modes())
	}
}

func TestBuild_AssignsUniqueSequentialIDs_When_Enumerating(t *testing.T) {
	t.Parallel()

	opts := baseOptions(makeDataDir(t))
	opts.Modes = job.AllModes()
	plan, err := Build(opts)
	require.NoError(t, err)

	for i, j := range drain(plan) {
		assert.Equal(t, i, j.ID())
	}
}

func TestBuild_AddressesEachTupleOnce_When_PerModeExpansion(t *testing.T) {
	t.Parallel()

	opts := baseOptions(makeDataDir(t))
	opts.Modes = []job.Mode{job.ModeCallgrind, job.ModeCachegrind}
	plan, err := Build(opts)
	require.NoError(t, err)

	type tuple struct {
		input, method string
		threshold     int
		mode          job.Mode
	}
	seen := map[tuple]bool{}
	for _, j := range drain(plan) {
		for _, c := range j.Commands() {
			k := tuple{j.Input(), j.Method(), j.Threshold(), c.Mode}
			assert.False(t, seen[k], "duplicate tuple %+v", k)
			seen[k] = true
		}
	}
	assert.Len(t, seen, 56)
}

func TestBuild_UsesSentinel_When_MethodNotThresholdAware(t *testing.T) {
	t.Parallel()

	plan, err := Build(baseOptions(makeDataDir(t)))
	require.NoError(t, err)

	for _, j := range drain(plan) {
		if j.Method() == "insertion" {
			assert.Equal(t, job.NoThreshold, j.Threshold())
		}
	}
}

func TestBuild_ClassifiesInputs_When_LayoutMixed(t *testing.T) {
	t.Parallel()

	dir := makeDataDir(t)
	plan, err := Build(baseOptions(dir))
	require.NoError(t, err)

	got := map[string]job.Category{}
	for _, j := range drain(plan) {
		rel, err := filepath.Rel(dir, j.Input())
		require.NoError(t, err)
		got[filepath.ToSlash(rel)] = j.Category()
	}
	assert.Equal(t, map[string]job.Category{
		"ascending/n_10.gz": job.Ascending,
		"random/n_10.gz":    job.Random,
		"random/n_100.gz":   job.Random,
		"strange/n_10.gz":   job.Unknown,
	}, got)
}

func TestBuild_Fails_When_OptionsInvalid(t *testing.T) {
	t.Parallel()

	dir := makeDataDir(t)
	mutate := map[string]func(*Options){
		"no methods":       func(o *Options) { o.Methods = nil },
		"zero runs":        func(o *Options) { o.Runs = 0 },
		"no thresholds":    func(o *Options) { o.Thresholds = nil },
		"bad threshold":    func(o *Options) { o.Thresholds = []int{0} },
		"no executable":    func(o *Options) { o.Exec = "" },
		"no data dir flag": func(o *Options) { o.DataDir = "" },
		"repeated method":  func(o *Options) { o.Methods = []string{"merge", "insertion", "merge"} },
		"repeated value":   func(o *Options) { o.Thresholds = []int{4, 8, 4} },
	}
	for name, fn := range mutate {
		opts := baseOptions(dir)
		fn(&opts)
		_, err := Build(opts)
		assert.True(t, errors.Is(err, ErrInvalidOptions), name)
	}
}

func TestBuild_Fails_When_DataDirMissing(t *testing.T) {
	t.Parallel()

	_, err := Build(baseOptions(filepath.Join(t.TempDir(), "nope")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestInputs_HonoursExtensions_When_Configured(t *testing.T) {
	t.Parallel()

	dir := makeDataDir(t)
	got, err := Inputs(dir, []string{".txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "random", "details.txt")}, got)
}

func TestBuild_IgnoresDataDirAncestors_When_Classifying(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "ascending", "data")
	input := filepath.Join(dir, "random", "n_10.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o755))
	require.NoError(t, os.WriteFile(input, nil, 0o644))
	opts := baseOptions(dir)
	opts.Methods = []string{"insertion"}

	plan, err := Build(opts)
	require.NoError(t, err)

	jobs := drain(plan)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.Random, jobs[0].Category())
	assert.Contains(t, jobs[0].Commands()[0].Args, "0,random,base")
}
