package version

import "fmt"

// These variables are populated by the Go linker (LDFLAGS) at build time.
var (
	Version    = "dev"     // Default value if not built with LDFLAGS
	CommitHash = "unknown" // Default value
	BuildDate  = "unknown" // Default value
)

// String renders the build stamp the way `sweep version` prints it.
func String() string {
	return fmt.Sprintf("sweep version %s\nCommit: %s\nBuilt: %s\n", Version, CommitHash, BuildDate)
}
