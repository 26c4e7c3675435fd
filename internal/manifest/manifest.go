// Package manifest records what one dispatch intended to run, so that the
// collected samples can later be reconciled against it.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkoosis/sweep/internal/job"
)

const (
	// FileName is the manifest's name inside the results directory.
	FileName = "job_details.json"
	// DetailsFileName is the data generator's manifest in the data directory.
	DetailsFileName = "details.json"
)

// ErrExists is returned when a manifest was already written to a directory.
var ErrExists = errors.New("run manifest already exists")

// Concurrency is the number of local workers, or cluster-managed for batch
// runs. It encodes as an integer or the string "cluster-managed".
type Concurrency struct {
	Workers int
	Cluster bool
}

const clusterManaged = "cluster-managed"

// Local returns the concurrency of a local run.
func Local(workers int) Concurrency { return Concurrency{Workers: workers} }

// ClusterManaged is the concurrency of a batch run.
func ClusterManaged() Concurrency { return Concurrency{Cluster: true} }

func (c Concurrency) String() string {
	if c.Cluster {
		return clusterManaged
	}
	return fmt.Sprint(c.Workers)
}

func (c Concurrency) MarshalJSON() ([]byte, error) {
	if c.Cluster {
		return json.Marshal(clusterManaged)
	}
	return json.Marshal(c.Workers)
}

func (c *Concurrency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		// Older manifests wrote "slurm".
		if s != clusterManaged && s != "slurm" {
			return fmt.Errorf("unknown concurrency %q", s)
		}
		*c = ClusterManaged()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("concurrency: %w", err)
	}
	*c = Local(n)
	return nil
}

// Manifest is the flat run record. Keys match what the result loader reads.
type Manifest struct {
	RunID       string          `json:"Run ID"`
	Started     time.Time       `json:"Started"`
	Command     string          `json:"Command"`
	Node        string          `json:"Node"`
	Platform    string          `json:"Platform"`
	System      string          `json:"System"`
	Release     string          `json:"Release"`
	Machine     string          `json:"Machine"`
	Processor   string          `json:"Processor"`
	CPUs        int             `json:"Number of CPUs"`
	Concurrency Concurrency     `json:"Number of concurrent jobs"`
	Runs        int             `json:"Runs"`
	Jobs        int             `json:"Total number of jobs"`
	Commands    int             `json:"Total number of commands"`
	Sorts       int             `json:"Total number of sorts"`
	Version     string          `json:"QST Version"`
	Executable  string          `json:"Executable"`
	Output      string          `json:"Output"`
	Modes       []string        `json:"Modes"`
	DataDetails json.RawMessage `json:"Data Details,omitempty"`
	Partition   json.RawMessage `json:"Partition,omitempty"`
}

// Options describes the run being recorded.
type Options struct {
	Args        []string
	Concurrency Concurrency
	Runs        int
	Jobs        int
	Commands    int
	Version     string
	Executable  string
	Output      string
	Modes       []job.Mode
	// DataDir is searched for the data generator's details.json.
	DataDir string
	// Partition is an opaque JSON cluster partition descriptor.
	Partition string
}

// New assembles a manifest for the current host.
func New(opts Options) (*Manifest, error) {
	m := &Manifest{
		RunID:       uuid.NewString(),
		Started:     time.Now().UTC().Truncate(time.Second),
		Command:     strings.Join(opts.Args, " "),
		Concurrency: opts.Concurrency,
		Runs:        opts.Runs,
		Jobs:        opts.Jobs,
		Commands:    opts.Commands,
		Sorts:       opts.Commands * opts.Runs,
		Version:     opts.Version,
		Executable:  opts.Executable,
		Output:      opts.Output,
	}
	for _, mode := range opts.Modes {
		m.Modes = append(m.Modes, mode.String())
	}

	h := currentHost()
	m.Node = h.node
	m.System = h.system
	m.Release = h.release
	m.Machine = h.machine
	m.Processor = h.machine
	m.Platform = platformString(h)
	m.CPUs = runtime.NumCPU()

	if opts.Partition != "" {
		if !json.Valid([]byte(opts.Partition)) {
			return nil, fmt.Errorf("partition is not valid JSON: %s", opts.Partition)
		}
		m.Partition = json.RawMessage(opts.Partition)
	}

	if opts.DataDir != "" {
		details, err := readDetails(filepath.Join(opts.DataDir, DetailsFileName))
		if err != nil {
			return nil, err
		}
		m.DataDetails = details
	}
	return m, nil
}

func readDetails(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data details: %w", err)
	}
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, fmt.Errorf("data details %s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}

// ExpectedSamples is the number of result rows a complete run produces.
func (m *Manifest) ExpectedSamples() int { return m.Sorts }

// Write creates dir/job_details.json. It fails with ErrExists if the file is
// already present; a manifest is never rewritten.
func (m *Manifest) Write(dir string) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, path)
		}
		return "", fmt.Errorf("create manifest: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close manifest: %w", err)
	}
	return path, nil
}

// Read loads the manifest from dir.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
