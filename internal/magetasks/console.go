package magetasks

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Output is where task headers and results are printed.
var Output io.Writer = os.Stdout

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// PrintH1Header prints a centered title between rules.
func PrintH1Header(title string) {
	const width = 80
	rule := strings.Repeat("=", width)
	pad := max((width-len(title))/2, 0)
	fmt.Fprintf(Output, "\n%s\n%s%s\n%s\n\n", rule, strings.Repeat(" ", pad), headerStyle.Render(title), rule)
}

// PrintH2Header prints a section header.
func PrintH2Header(title string) {
	fmt.Fprintf(Output, "\n=== %s ===\n\n", headerStyle.Render(title))
}

func PrintSuccess(msg string) { fmt.Fprintln(Output, successStyle.Render("ok: ")+msg) }
func PrintWarning(msg string) { fmt.Fprintln(Output, warningStyle.Render("warning: ")+msg) }
func PrintError(msg string)   { fmt.Fprintln(Output, errorStyle.Render("error: ")+msg) }
