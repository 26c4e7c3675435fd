// Package config handles configuration loading and merging for sweep.
//
// # Configuration Precedence
//
// Configuration values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--exec, --runs, --max-batch, --no-color, --debug, etc.)
//  2. Environment variables (SWEEP_EXEC, SWEEP_VALGRIND, SWEEP_MAX_BATCH, SWEEP_DEBUG, SWEEP_NO_COLOR, NO_COLOR, SWEEP_HISTORY)
//  3. YAML config file (--config FILE, else .sweep.yaml in the working directory or ~/.config/sweep/.sweep.yaml)
//  4. Hardcoded defaults
//
// CLI flags are applied by the caller; this package covers levels 2 to 4.
//
// # Example
//
//	exec: ./build/QST
//	methods: [qsort_c, qsort_cpp, std_sort]
//	runs: 5
//	jobs: CPU
//	valgrind_opts: ["--cache-sim=yes"]
//	max_batch: 4500
//	partitions: [teton, teton-cascade, moran]
//	submit_wait: 30s
//	history: true
package config
