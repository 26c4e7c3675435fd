package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount_GroupsThousands_When_Large(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "999", Count(999))
	assert.Equal(t, "4,500", Count(4500))
	assert.Equal(t, "1,234,567", Count(1234567))
}

func TestTitle_CapitalizesWords_When_Lowercase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Local Run", Title("local run"))
}

func TestRenderSummary_AlignsValues_When_KeysDiffer(t *testing.T) {
	t.Parallel()

	p := NewPrinterWithTheme(&bytes.Buffer{}, PlainTheme())
	out := p.RenderSummary("batch", []Row{
		{Key: "files", Value: "3"},
		{Key: "commands", Value: "13,500", Status: StatusOK},
	})

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "Batch", strings.TrimSpace(lines[0]))
	assert.Equal(t, strings.Index(lines[1], "3"), strings.Index(lines[2], "13,500"))
}

func TestNewPrinter_UsesPlainTheme_When_NotTerminal(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	p := NewPrinter(buf, false)
	p.Summary("run", []Row{{Key: "failed", Value: "2", Status: StatusFail}})
	p.Errorf("boom %d", 1)

	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "failed  2")
	assert.Contains(t, buf.String(), "error: boom 1")
	assert.False(t, IsTerminal(buf))
}
