package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/sweep/internal/executor"
	"github.com/dkoosis/sweep/internal/manifest"
)

const fakeQST = `#!/bin/bash
case "$1" in
  --show-methods=threshold) echo merge; exit 0 ;;
  --show-methods=nonthreshold) echo insertion; exit 0 ;;
  --version-json) echo '{"version": "0.9.0"}'; exit 0 ;;
esac
out=""; runs=1; vals=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift ;;
    --runs) runs="$2"; shift ;;
    --vals) vals="$2"; shift ;;
  esac
  shift
done
[ -f "$out" ] || echo "method,time,id,description,run_type" >> "$out"
for i in $(seq "$runs"); do echo "m,1,$vals" >> "$out"; done
`

type harness struct {
	t      *testing.T
	root   string
	data   string
	exec   string
	stdout bytes.Buffer
	stderr bytes.Buffer
	env    map[string]string
	runner func(ctx context.Context, dir string, argv []string) ([]byte, error)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		t:    t,
		root: root,
		data: filepath.Join(root, "data"),
		exec: filepath.Join(root, "qst"),
		env:  map[string]string{},
	}
	// Keeps a developer's own config and history out of the tests.
	t.Setenv("XDG_CONFIG_HOME", root)
	for _, rel := range []string{"random/n_10.gz", "descending/n_10.gz"} {
		path := filepath.Join(h.data, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	require.NoError(t, os.WriteFile(h.exec, []byte(fakeQST), 0o755))
	return h
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	a := newApp(&h.stdout, &h.stderr)
	a.lookup = func(k string) (string, bool) {
		v, ok := h.env[k]
		return v, ok
	}
	a.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	a.executorOptions = []executor.Option{
		executor.WithGroupSetup(func() error { return nil }),
		executor.WithSignals(),
	}
	a.submitRunner = h.runner
	return a.execute(args)
}

// writeConfig points the CLI at an explicit config file under the harness.
func (h *harness) writeConfig(body string) string {
	path := filepath.Join(h.root, ".sweep.yaml")
	require.NoError(h.t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_PrintsVersion_When_VersionCommand(t *testing.T) {
	h := newHarness(t)

	code := h.run("version")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, h.stdout.String(), "sweep version dev")
}

func TestRun_ExitsWithUsage_When_ArgumentsInvalid(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"run", h.data, "--bogus"}},
		{"missing data dir argument", []string{"run"}},
		{"jobs with slurm", []string{"run", h.data, "-e", h.exec, "-j", "2", "-s", filepath.Join(h.root, "b")}},
		{"zero runs", []string{"run", h.data, "-e", h.exec, "-r", "0"}},
		{"bad threshold", []string{"run", h.data, "-e", h.exec, "-t", "9,3"}},
		{"unknown method", []string{"run", h.data, "-e", h.exec, "-m", "bogo"}},
		{"no executable", []string{"run", h.data}},
		{"missing config", []string{"--config", filepath.Join(h.root, "none.yaml"), "version"}},
		{"submit without partition", []string{"submit", h.data}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, exitUsage, h.run(tt.args...), h.stdout.String()+h.stderr.String())
		})
	}
}

func TestRun_WritesBatchAndVerifies_When_SlurmDirGiven(t *testing.T) {
	h := newHarness(t)
	batchDir := filepath.Join(h.root, "slurm.d")

	code := h.run("run", h.data, "-e", h.exec, "-r", "3", "-t", "4,8,4", "-s", batchDir, "--max-batch", "4")

	require.Equal(t, exitOK, code, h.stderr.String())
	// 2 inputs x (insertion + merge at 4 and 8) = 6 commands.
	assert.FileExists(t, filepath.Join(batchDir, "0.dat"))
	assert.FileExists(t, filepath.Join(batchDir, "1.dat"))
	assert.NoFileExists(t, filepath.Join(batchDir, "2.dat"))
	assert.Contains(t, h.stdout.String(), "Batch Written")

	m, err := manifest.Read(batchDir)
	require.NoError(t, err)
	assert.Equal(t, 18, m.ExpectedSamples())
	assert.True(t, strings.HasPrefix(m.Command, "sweep run "), m.Command)

	// Simulate the cluster: every line runs from the batch directory.
	for _, name := range []string{"0.dat", "1.dat"} {
		data, err := os.ReadFile(filepath.Join(batchDir, name))
		require.NoError(t, err)
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			assert.Contains(t, line, "--output output_2024-03-01_09-00-00.csv")
		}
	}
	assert.Equal(t, exitFailure, h.run("verify", batchDir), "no rows collected yet")
	assert.Contains(t, h.stdout.String(), "18")
	assert.Contains(t, h.stderr.String(), "incomplete")
}

func TestRun_RunsLocally_When_NoSlurmDir(t *testing.T) {
	h := newHarness(t)
	cfg := h.writeConfig("results_root: " + filepath.Join(h.root, "results") + "\nmethods: [insertion]\n")
	out := filepath.Join(h.root, "res", "out.csv")

	code := h.run("--config", cfg, "run", h.data, "-e", h.exec, "-j", "2", "-r", "2", "-o", out)

	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Local Run")
	assert.Equal(t, exitOK, h.run("verify", filepath.Dir(out)), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "missing")
}

func TestRun_ExitsWithFailure_When_JobFails(t *testing.T) {
	h := newHarness(t)
	broken := filepath.Join(h.root, "broken")
	require.NoError(t, os.WriteFile(broken, []byte(`#!/bin/bash
case "$1" in
  --show-methods=threshold) exit 0 ;;
  --show-methods=nonthreshold) echo insertion; exit 0 ;;
esac
echo "cannot read input"
exit 4
`), 0o755))

	code := h.run("run", h.data, "-e", broken, "-o", filepath.Join(h.root, "r", "out.csv"))

	assert.Equal(t, exitFailure, code)
	assert.Contains(t, h.stderr.String(), "cannot read input")
	assert.Contains(t, h.stderr.String(), "jobs failed: 2 of 2")
}

func TestRun_SubmitsEveryBatchFile_When_SubmitCommand(t *testing.T) {
	h := newHarness(t)
	batchDir := filepath.Join(h.root, "slurm.d")
	require.Equal(t, exitOK, h.run("run", h.data, "-e", h.exec, "-s", batchDir, "--max-batch", "2"))
	script := filepath.Join(h.root, "job.sbatch")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\n"), 0o644))

	var calls [][]string
	h.runner = func(_ context.Context, _ string, argv []string) ([]byte, error) {
		calls = append(calls, argv)
		return []byte("Submitted batch job 42\n"), nil
	}
	code := h.run("submit", batchDir, "--partition", "teton", "--script", script, "--wait", "0s",
		"--results-root", filepath.Join(h.root, "results"))

	require.Equal(t, exitOK, code, h.stderr.String())
	// 2 inputs x (insertion + merge) = 4 commands, 2 per file.
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"sbatch", "--array", "0-1", "--partition", "teton", script}, calls[0][:6])
	assert.Contains(t, h.stdout.String(), "Submitted batch job 42")
}

func TestRun_RecordsHistory_When_Enabled(t *testing.T) {
	h := newHarness(t)
	h.env["SWEEP_HISTORY"] = "1"
	cfg := h.writeConfig("history_path: " + filepath.Join(h.root, "history.db") + "\n")

	require.Equal(t, exitOK, h.run("--config", cfg, "run", h.data, "-e", h.exec, "-s", filepath.Join(h.root, "b")))
	require.Equal(t, exitOK, h.run("--config", cfg, "history"))

	assert.Contains(t, h.stdout.String(), "Recent Runs")
	assert.Contains(t, h.stdout.String(), "batch")
}
