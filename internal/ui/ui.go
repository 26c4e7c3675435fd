// Package ui renders run summaries for the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Theme holds the styles used by summaries.
type Theme struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Box     lipgloss.Style
}

// DefaultTheme is the colored theme.
func DefaultTheme() Theme {
	return Theme{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Box: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}

// PlainTheme renders without color or borders.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{Title: plain, Key: plain, Success: plain, Warning: plain, Error: plain, Muted: plain, Box: plain}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	type fder interface{ Fd() uintptr }
	if f, ok := w.(fder); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Printer writes styled output.
type Printer struct {
	out   io.Writer
	theme Theme
}

// NewPrinter picks the colored theme for terminals unless noColor is set.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	theme := PlainTheme()
	if !noColor && IsTerminal(out) {
		theme = DefaultTheme()
	}
	return &Printer{out: out, theme: theme}
}

// NewPrinterWithTheme uses an explicit theme.
func NewPrinterWithTheme(out io.Writer, theme Theme) *Printer {
	return &Printer{out: out, theme: theme}
}

// Status is the outcome shown next to a summary value.
type Status int

const (
	StatusNone Status = iota
	StatusOK
	StatusWarn
	StatusFail
)

// Row is one key/value line of a summary.
type Row struct {
	Key    string
	Value  string
	Status Status
}

// Summary renders a titled block of aligned key/value rows.
func (p *Printer) Summary(title string, rows []Row) {
	fmt.Fprintln(p.out, p.RenderSummary(title, rows))
}

// RenderSummary returns what Summary prints.
func (p *Printer) RenderSummary(title string, rows []Row) string {
	width := 0
	for _, r := range rows {
		if w := runewidth.StringWidth(r.Key); w > width {
			width = w
		}
	}

	var sb strings.Builder
	sb.WriteString(p.theme.Title.Render(Title(title)))
	for _, r := range rows {
		sb.WriteString("\n")
		sb.WriteString(p.theme.Key.Render(runewidth.FillRight(r.Key, width)))
		sb.WriteString("  ")
		sb.WriteString(p.value(r))
	}
	return p.theme.Box.Render(sb.String())
}

func (p *Printer) value(r Row) string {
	switch r.Status {
	case StatusOK:
		return p.theme.Success.Render(r.Value)
	case StatusWarn:
		return p.theme.Warning.Render(r.Value)
	case StatusFail:
		return p.theme.Error.Render(r.Value)
	default:
		return r.Value
	}
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.out, p.theme.Error.Render("error: ")+fmt.Sprintf(format, args...))
}

// Mutedf prints a de-emphasized line.
func (p *Printer) Mutedf(format string, args ...any) {
	fmt.Fprintln(p.out, p.theme.Muted.Render(fmt.Sprintf(format, args...)))
}

var countPrinter = message.NewPrinter(language.English)
var countMu sync.Mutex

// Count formats n with thousands separators.
func Count(n int) string {
	countMu.Lock()
	defer countMu.Unlock()
	return countPrinter.Sprintf("%d", n)
}

// Title converts s to title case.
func Title(s string) string {
	return cases.Title(language.English).String(s)
}
