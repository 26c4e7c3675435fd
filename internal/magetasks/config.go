package magetasks

import (
	"os"
	"path/filepath"
)

var (
	// ModulePath is the Go module path stamped into version ldflags.
	ModulePath = "github.com/dkoosis/sweep"

	// BinPath is where Build writes the sweep binary.
	BinPath = "./bin/sweep"

	// MainPackage is the package Build compiles.
	MainPackage = "./cmd/sweep"

	// ProjectRoot is the directory mage was started in.
	ProjectRoot string
)

// Initialize records the project root and creates bin/.
// Call this from the Magefile init() function.
func Initialize() error {
	var err error
	ProjectRoot, err = os.Getwd()
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(ProjectRoot, "bin"), 0o750)
}
