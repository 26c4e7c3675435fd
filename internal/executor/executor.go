// Package executor drains a job queue on the local machine with a pool of
// workers, each running one job's commands at a time.
package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dkoosis/sweep/internal/job"
	"github.com/dkoosis/sweep/internal/procgroup"
	"github.com/dkoosis/sweep/internal/queue"
)

// EventType identifies executor lifecycle events.
type EventType int

const (
	EventJobStarted EventType = iota
	EventCommandFinished
	EventJobFinished
)

func (t EventType) String() string {
	switch t {
	case EventJobStarted:
		return "job-started"
	case EventCommandFinished:
		return "command-finished"
	case EventJobFinished:
		return "job-finished"
	default:
		return "unknown"
	}
}

// Event is delivered to the observer. Events are serialized: the observer is
// never called concurrently.
type Event struct {
	Type   EventType
	JobID  int
	Worker int
	// Command is set for EventCommandFinished.
	Command *job.CommandResult
	// Err is the job's aggregated error for EventJobFinished.
	Err  error
	When time.Time
}

// Result summarizes one local run.
type Result struct {
	Jobs           int
	Commands       int
	FailedJobs     int
	FailedCommands int
	Workers        int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Duration is the wall-clock time of the run.
func (r Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Option configures an Executor.
type Option func(*config)

// WithWorkers sets the number of concurrent jobs. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithStdout sets where command lines are echoed.
func WithStdout(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.stdout = w
		}
	}
}

// WithQuiet suppresses command echo.
func WithQuiet(quiet bool) Option {
	return func(c *config) { c.quiet = quiet }
}

// WithMaxTailLines bounds the output kept for a failing command.
func WithMaxTailLines(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTail = n
		}
	}
}

// WithOnEvent registers an observer.
func WithOnEvent(fn func(Event)) Option {
	return func(c *config) { c.onEvent = fn }
}

// WithGroupSetup replaces procgroup.Setup.
func WithGroupSetup(fn func() error) Option {
	return func(c *config) { c.groupSetup = fn }
}

// WithKiller replaces procgroup.Kill as the cancellation path.
func WithKiller(fn func() error) Option {
	return func(c *config) { c.kill = fn }
}

// WithSignals sets the signals that trigger cancellation. No signals
// disables the handler.
func WithSignals(sigs ...os.Signal) Option {
	return func(c *config) { c.signals = sigs }
}

// WithLogger sets the logger for failures and cancellation.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

type config struct {
	workers    int
	stdout     io.Writer
	quiet      bool
	maxTail    int
	onEvent    func(Event)
	groupSetup func() error
	kill       func() error
	signals    []os.Signal
	log        logrus.FieldLogger
}

func defaultConfig() config {
	return config{
		workers:    1,
		stdout:     os.Stdout,
		maxTail:    job.DefaultMaxTail,
		groupSetup: procgroup.Setup,
		kill:       procgroup.Kill,
		signals:    procgroup.Signals(),
		log:        logrus.StandardLogger(),
	}
}

// Executor runs queued jobs locally.
type Executor struct {
	cfg config

	emitMu  sync.Mutex
	writeMu sync.Mutex
}

// New creates an executor.
func New(opts ...Option) *Executor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	return &Executor{cfg: cfg}
}

// Run drains q. Every job is taken by exactly one worker and run once;
// failures are logged and returned together after the queue is empty. An
// interrupt or terminate signal kills the whole process group.
func (e *Executor) Run(ctx context.Context, q *queue.Queue[*job.Job]) (Result, error) {
	res := Result{StartedAt: time.Now()}

	if e.cfg.groupSetup != nil {
		if err := e.cfg.groupSetup(); err != nil {
			res.FinishedAt = time.Now()
			return res, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopSignals := e.handleSignals(cancel)
	defer stopSignals()

	workers := e.cfg.workers
	if n := q.Len(); n < workers {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	res.Workers = workers

	var (
		mu     sync.Mutex
		failed *multierror.Error
	)
	record := func(j *job.Job, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.Jobs++
		res.Commands += j.Len()
		if err != nil {
			res.FailedJobs++
			res.FailedCommands += countCommandErrors(err)
			failed = multierror.Append(failed, err)
		}
	}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		worker := w
		g.Go(func() error {
			return e.work(ctx, worker, q, record)
		})
	}
	waitErr := g.Wait()
	res.FinishedAt = time.Now()

	if waitErr != nil {
		failed = multierror.Append(failed, waitErr)
	}
	return res, failed.ErrorOrNil()
}

func (e *Executor) work(ctx context.Context, worker int, q *queue.Queue[*job.Job], record func(*job.Job, error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		j, ok := q.TryPop()
		if !ok {
			return nil
		}

		e.emit(Event{Type: EventJobStarted, JobID: j.ID(), Worker: worker, When: time.Now()})
		err := j.Run(ctx, job.RunOptions{
			Quiet:   e.cfg.quiet,
			Echo:    &lockedWriter{mu: &e.writeMu, w: e.cfg.stdout},
			MaxTail: e.cfg.maxTail,
			OnCommand: func(r job.CommandResult) {
				e.emit(Event{Type: EventCommandFinished, JobID: j.ID(), Worker: worker, Command: &r, When: time.Now()})
			},
		})
		if err != nil && ctx.Err() == nil {
			e.logFailure(j, err)
		}
		record(j, err)
		e.emit(Event{Type: EventJobFinished, JobID: j.ID(), Worker: worker, Err: err, When: time.Now()})
	}
}

func (e *Executor) handleSignals(cancel context.CancelFunc) func() {
	if len(e.cfg.signals) == 0 {
		return func() {}
	}
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, e.cfg.signals...)
	go func() {
		select {
		case sig := <-sigCh:
			e.cfg.log.WithField("signal", sig.String()).Warn("cancelling: killing process group")
			cancel()
			if e.cfg.kill != nil {
				if err := e.cfg.kill(); err != nil {
					e.cfg.log.WithError(err).Error("kill process group")
				}
			}
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func (e *Executor) emit(evt Event) {
	if e.cfg.onEvent == nil {
		return
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.cfg.onEvent(evt)
}

func (e *Executor) logFailure(j *job.Job, err error) {
	var merr *multierror.Error
	errs := []error{err}
	if errors.As(err, &merr) {
		errs = merr.Errors
	}
	for _, one := range errs {
		var cmdErr *job.CommandError
		if !errors.As(one, &cmdErr) {
			e.cfg.log.WithField("job", j.ID()).Error(one)
			continue
		}
		e.cfg.log.WithFields(logrus.Fields{
			"job":  cmdErr.JobID,
			"mode": cmdErr.Mode.String(),
			"exit": cmdErr.ExitCode,
		}).Errorf("command failed\n%s", cmdErr.Report())
	}
}

func countCommandErrors(err error) int {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return len(merr.Errors)
	}
	return 1
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
