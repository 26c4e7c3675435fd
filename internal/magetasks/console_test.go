package magetasks

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	old := Output
	Output = &buf
	defer func() { Output = old }()
	fn()
	return buf.String()
}

func TestPrintH1Header_CentersTitle_When_Printed(t *testing.T) {
	out := captureOutput(t, func() { PrintH1Header("sweep QA") })

	assert.Contains(t, out, strings.Repeat("=", 80))
	assert.Contains(t, out, strings.Repeat(" ", 36)+"sweep QA")
}

func TestPrintH2Header_WrapsTitle_When_Printed(t *testing.T) {
	out := captureOutput(t, func() { PrintH2Header("Tests") })

	assert.Contains(t, out, "=== Tests ===")
}

func TestPrintStatus_PrefixesLevel_When_Printed(t *testing.T) {
	out := captureOutput(t, func() {
		PrintSuccess("built")
		PrintWarning("staticcheck missing")
		PrintError("vet failed")
	})

	assert.Contains(t, out, "ok: built")
	assert.Contains(t, out, "warning: staticcheck missing")
	assert.Contains(t, out, "error: vet failed")
}
