package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvExec     = "SWEEP_EXEC"
	EnvValgrind = "SWEEP_VALGRIND"
	EnvMaxBatch = "SWEEP_MAX_BATCH"
	EnvDebug    = "SWEEP_DEBUG"
	EnvNoColor  = "SWEEP_NO_COLOR"
	EnvHistory  = "SWEEP_HISTORY"
)

// LookupFunc matches os.LookupEnv so tests can inject an environment.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Environment sits between
// CLI flags and the YAML file in the precedence order.
func ApplyEnv(cfg *AppConfig, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvExec); ok && v != "" {
		cfg.Exec = v
	}
	if v, ok := lookup(EnvValgrind); ok && v != "" {
		cfg.Valgrind = v
	}
	if v, ok := lookup(EnvMaxBatch); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidConfig, EnvMaxBatch, v)
		}
		cfg.MaxBatch = n
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		cfg.Debug = truthy(v)
	}
	if v, ok := lookup(EnvHistory); ok && v != "" {
		cfg.History = truthy(v)
	}

	noColor, ok := lookup(EnvNoColor)
	if !ok || noColor == "" {
		// https://no-color.org: any non-empty value disables color.
		if v, set := lookup("NO_COLOR"); set && v != "" {
			cfg.NoColor = true
		}
	} else {
		cfg.NoColor = truthy(noColor)
	}
	return nil
}

func truthy(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		// Non-boolean values like "yes" count as set.
		return true
	}
	return b
}
