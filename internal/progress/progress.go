// Package progress shows how many commands of a local run have finished.
// It is advisory only; completion is signalled by the executor returning.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dkoosis/sweep/internal/executor"
	"github.com/dkoosis/sweep/internal/ui"
)

// Reporter consumes executor events.
type Reporter interface {
	Observe(executor.Event)
	Close()
}

// Options configures New.
type Options struct {
	Total int
	Out   io.Writer
	// TTY forces the interactive bar on or off; nil detects it from Out.
	TTY *bool
	// Step is the fraction of Total between plain-text updates.
	Step float64
}

// New returns an interactive bar on terminals and a line reporter elsewhere.
func New(opts Options) Reporter {
	tty := ui.IsTerminal(opts.Out)
	if opts.TTY != nil {
		tty = *opts.TTY
	}
	if tty {
		return newBar(opts)
	}
	return newLines(opts)
}

// Nop discards events.
type Nop struct{}

func (Nop) Observe(executor.Event) {}
func (Nop) Close()                 {}

type counts struct {
	total, done, failed int
}

func (c counts) fraction() float64 {
	if c.total <= 0 {
		return 1
	}
	return float64(c.done) / float64(c.total)
}

func (c counts) String() string {
	s := fmt.Sprintf("%s/%s commands", ui.Count(c.done), ui.Count(c.total))
	if c.failed > 0 {
		s += fmt.Sprintf(", %s failed", ui.Count(c.failed))
	}
	return s
}

// lines prints one line each time another Step of the work has finished.
type lines struct {
	mu    sync.Mutex
	out   io.Writer
	step  float64
	next  float64
	c     counts
	start time.Time
}

func newLines(opts Options) *lines {
	step := opts.Step
	if step <= 0 || step > 1 {
		step = 0.1
	}
	return &lines{out: opts.Out, step: step, next: step, c: counts{total: opts.Total}, start: time.Now()}
}

func (l *lines) Observe(e executor.Event) {
	if e.Type != executor.EventCommandFinished || e.Command == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.done++
	if e.Command.Err != nil {
		l.c.failed++
	}
	if f := l.c.fraction(); f >= l.next && l.c.done < l.c.total {
		fmt.Fprintf(l.out, "progress: %s (%.0f%%) in %s\n", l.c, f*100, time.Since(l.start).Round(time.Second))
		for l.next <= f {
			l.next += l.step
		}
	}
}

func (l *lines) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "progress: %s in %s\n", l.c, time.Since(l.start).Round(time.Second))
}

type commandMsg struct{ failed bool }
type finishMsg struct{}

type model struct {
	bar      progress.Model
	c        counts
	start    time.Time
	finished bool
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case commandMsg:
		m.c.done++
		if msg.failed {
			m.c.failed++
		}
	case finishMsg:
		m.finished = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-50, 10), 60)
	}
	return m, nil
}

func (m model) View() string {
	view := fmt.Sprintf("%s  %s  %s", m.bar.ViewAs(m.c.fraction()), m.c, time.Since(m.start).Round(time.Second))
	if m.finished {
		view += "\n"
	}
	return view
}

// bar drives a Bubble Tea program. Input and signal handling stay with the
// executor.
type bar struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

func newBar(opts Options) *bar {
	m := model{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		c:     counts{total: opts.Total},
		start: time.Now(),
	}
	b := &bar{
		program: tea.NewProgram(m,
			tea.WithOutput(opts.Out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(b.done)
		_, _ = b.program.Run()
	}()
	return b
}

func (b *bar) Observe(e executor.Event) {
	if e.Type != executor.EventCommandFinished || e.Command == nil {
		return
	}
	b.program.Send(commandMsg{failed: e.Command.Err != nil})
}

func (b *bar) Close() {
	b.once.Do(func() {
		b.program.Send(finishMsg{})
		<-b.done
	})
}
