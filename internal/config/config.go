package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the working directory and
// in the user config directory.
const FileName = ".sweep.yaml"

// Constants for default values.
const (
	DefaultValgrind     = "valgrind"
	DefaultRuns         = 1
	DefaultJobs         = "1"
	DefaultMaxBatch     = 4500 // Slurm MaxArraySize on the clusters we submit to
	DefaultResultsRoot  = "results"
	DefaultSbatch       = "sbatch"
	DefaultSbatchScript = "job.sbatch"
	DefaultSubmitWait   = 30 * time.Second
)

// AppConfig represents the settings read from .sweep.yaml.
type AppConfig struct {
	Exec         string        `yaml:"exec,omitempty"`
	Valgrind     string        `yaml:"valgrind,omitempty"`
	ValgrindOpts []string      `yaml:"valgrind_opts,omitempty"`
	Methods      []string      `yaml:"methods,omitempty"`
	Runs         int           `yaml:"runs,omitempty"`
	Jobs         string        `yaml:"jobs,omitempty"`
	MaxBatch     int           `yaml:"max_batch,omitempty"`
	ResultsRoot  string        `yaml:"results_root,omitempty"`
	InputExts    []string      `yaml:"input_exts,omitempty"`
	Sbatch       string        `yaml:"sbatch,omitempty"`
	SbatchScript string        `yaml:"sbatch_script,omitempty"`
	Partitions   []string      `yaml:"partitions,omitempty"`
	SubmitWait   time.Duration `yaml:"submit_wait,omitempty"`
	NoColor      bool          `yaml:"no_color"`
	Debug        bool          `yaml:"debug"`

	// History records every dispatch in a local SQLite database.
	History     bool   `yaml:"history"`
	HistoryPath string `yaml:"history_path,omitempty"`

	// Path is the file the settings came from, empty when only defaults apply.
	Path string `yaml:"-"`
}

// Defaults returns the hardcoded configuration.
func Defaults() *AppConfig {
	return &AppConfig{
		Valgrind:     DefaultValgrind,
		Runs:         DefaultRuns,
		Jobs:         DefaultJobs,
		MaxBatch:     DefaultMaxBatch,
		ResultsRoot:  DefaultResultsRoot,
		InputExts:    []string{".gz"},
		Sbatch:       DefaultSbatch,
		SbatchScript: DefaultSbatchScript,
		SubmitWait:   DefaultSubmitWait,
	}
}

// LoadConfig loads the configuration. An explicit path must exist; otherwise
// the file is discovered with getConfigPath and its absence is not an error.
func LoadConfig(explicit string) (*AppConfig, error) {
	appCfg := Defaults()

	configPath := explicit
	if configPath == "" {
		configPath = getConfigPath()
		if configPath == "" {
			return appCfg, nil
		}
	}

	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	var yamlAppCfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &yamlAppCfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
	}

	merge(appCfg, &yamlAppCfg)
	appCfg.Path = configPath
	if err := appCfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	return appCfg, nil
}

// merge copies every field set in the YAML file onto the defaults.
func merge(dst, src *AppConfig) {
	if src.Exec != "" {
		dst.Exec = src.Exec
	}
	if src.Valgrind != "" {
		dst.Valgrind = src.Valgrind
	}
	if src.ValgrindOpts != nil {
		dst.ValgrindOpts = src.ValgrindOpts
	}
	if src.Methods != nil {
		dst.Methods = src.Methods
	}
	if src.Runs != 0 {
		dst.Runs = src.Runs
	}
	if src.Jobs != "" {
		dst.Jobs = src.Jobs
	}
	if src.MaxBatch != 0 {
		dst.MaxBatch = src.MaxBatch
	}
	if src.ResultsRoot != "" {
		dst.ResultsRoot = src.ResultsRoot
	}
	if src.InputExts != nil {
		dst.InputExts = src.InputExts
	}
	if src.Sbatch != "" {
		dst.Sbatch = src.Sbatch
	}
	if src.SbatchScript != "" {
		dst.SbatchScript = src.SbatchScript
	}
	if src.Partitions != nil {
		dst.Partitions = src.Partitions
	}
	if src.SubmitWait != 0 {
		dst.SubmitWait = src.SubmitWait
	}
	if src.HistoryPath != "" {
		dst.HistoryPath = src.HistoryPath
	}
	dst.NoColor = src.NoColor
	dst.Debug = src.Debug
	dst.History = src.History
}

// ErrInvalidConfig marks values no dispatch could run with.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate rejects values that are never usable regardless of CLI flags.
func (c *AppConfig) Validate() error {
	if c.Runs <= 0 {
		return fmt.Errorf("%w: runs must be >= 1, got %d", ErrInvalidConfig, c.Runs)
	}
	if c.MaxBatch <= 0 {
		return fmt.Errorf("%w: max_batch must be >= 1, got %d", ErrInvalidConfig, c.MaxBatch)
	}
	if c.SubmitWait < 0 {
		return fmt.Errorf("%w: submit_wait must not be negative", ErrInvalidConfig)
	}
	if len(c.InputExts) == 0 {
		return fmt.Errorf("%w: input_exts must list at least one extension", ErrInvalidConfig)
	}
	return nil
}

// getConfigPath tries to find the .sweep.yaml configuration file.
// It checks local directory first, then XDG UserConfigDir (if valid).
func getConfigPath() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}

	configHome, err := os.UserConfigDir()
	// An empty or root config home cannot hold a per-user config.
	if err == nil && configHome != "" && configHome != "/" {
		xdgPath := filepath.Join(configHome, "sweep", FileName)
		if _, errStat := os.Stat(xdgPath); errStat == nil {
			return xdgPath
		}
	}

	return ""
}
