package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/sweep/internal/job"
	"github.com/dkoosis/sweep/internal/queue"
)

// fakeBench logs the --vals argument of every invocation. Job ids listed in
// failIDs exit non-zero.
func fakeBench(t *testing.T, dir, log string, failIDs ...int) string {
	t.Helper()
	fail := make([]string, len(failIDs))
	for i, id := range failIDs {
		fail[i] = strconv.Itoa(id)
	}
	script := fmt.Sprintf(`#!/bin/bash
vals=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--vals" ]; then vals="$2"; fi
  shift
done
echo "$vals" >> %q
id="${vals%%%%,*}"
for f in %s; do
  if [ "$id" = "$f" ]; then echo "sort failed for $id"; exit 5; fi
done
exit 0
`, log, strings.Join(fail, " "))
	path := filepath.Join(dir, "qst")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func buildQueue(exec string, n int, modes ...job.Mode) *queue.Queue[*job.Job] {
	q := queue.New[*job.Job]()
	for i := 0; i < n; i++ {
		q.Push(job.New(i, job.Params{
			Exec:      exec,
			Input:     fmt.Sprintf("/data/random/n_%d.gz", i),
			Category:  job.Random,
			Method:    "merge",
			Threshold: 4,
			Runs:      1,
			Output:    "/dev/null",
			Modes:     modes,
		}))
	}
	return q
}

func loggedIDs(t *testing.T, log string) []int {
	t.Helper()
	data, err := os.ReadFile(log)
	require.NoError(t, err)
	var ids []int
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		id, err := strconv.Atoi(strings.SplitN(line, ",", 2)[0])
		require.NoError(t, err, line)
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func testOptions(extra ...Option) []Option {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	opts := []Option{
		WithQuiet(true),
		WithGroupSetup(func() error { return nil }),
		WithKiller(func() error { return nil }),
		WithSignals(),
		WithLogger(logger),
	}
	return append(opts, extra...)
}

func TestRun_ExecutesEachJobOnce_When_WorkersVary(t *testing.T) {
	for _, workers := range []int{1, 3, 8, 50} {
		t.Run(strconv.Itoa(workers), func(t *testing.T) {
			dir := t.TempDir()
			log := filepath.Join(dir, "ids.log")
			q := buildQueue(fakeBench(t, dir, log), 20)

			res, err := New(testOptions(WithWorkers(workers))...).Run(context.Background(), q)
			require.NoError(t, err)

			want := make([]int, 20)
			for i := range want {
				want[i] = i
			}
			assert.Equal(t, want, loggedIDs(t, log))
			assert.Equal(t, 20, res.Jobs)
			assert.Equal(t, 20, res.Commands)
			assert.Equal(t, 0, q.Len())
			assert.LessOrEqual(t, res.Workers, 20)
		})
	}
}

func TestRun_AggregatesFailures_When_SomeJobsFail(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "ids.log")
	q := buildQueue(fakeBench(t, dir, log, 2, 5), 8)

	logBuf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(logBuf)

	res, err := New(testOptions(WithWorkers(4), WithLogger(logger))...).Run(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, job.ErrNonZeroExit))

	assert.Equal(t, 8, res.Jobs)
	assert.Equal(t, 2, res.FailedJobs)
	assert.Equal(t, 2, res.FailedCommands)
	assert.Len(t, loggedIDs(t, log), 8, "failures must not stop other jobs")
	assert.Contains(t, logBuf.String(), "sort failed for 2")
	assert.Contains(t, logBuf.String(), "sort failed for 5")
}

func TestRun_EmitsOrderedEventsPerJob_When_ObserverSet(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "ids.log")
	q := buildQueue(fakeBench(t, dir, log), 3)

	var mu sync.Mutex
	perJob := map[int][]EventType{}
	observer := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		perJob[e.JobID] = append(perJob[e.JobID], e.Type)
	}

	_, err := New(testOptions(WithWorkers(2), WithOnEvent(observer))...).Run(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, perJob, 3)
	for id, types := range perJob {
		assert.Equal(t, []EventType{EventJobStarted, EventCommandFinished, EventJobFinished}, types, "job %d", id)
	}
}

func TestRun_EchoesCommands_When_NotQuiet(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "ids.log")
	exec := fakeBench(t, dir, log)
	q := buildQueue(exec, 2)

	out := &bytes.Buffer{}
	_, err := New(testOptions(WithQuiet(false), WithStdout(out))...).Run(context.Background(), q)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, exec+" "), l)
	}
}

func TestRun_ReturnsSetupError_When_GroupSetupFails(t *testing.T) {
	t.Parallel()

	boom := errors.New("setpgid denied")
	q := buildQueue("/bin/true", 1)
	_, err := New(testOptions(WithGroupSetup(func() error { return boom }))...).Run(context.Background(), q)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, q.Len(), "no job may start after setup fails")
}

func TestRun_StopsTakingJobs_When_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "ids.log")
	q := buildQueue(fakeBench(t, dir, log), 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(testOptions(WithWorkers(2))...).Run(ctx, q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, res.Jobs)
	assert.Equal(t, 5, q.Len())
}

func TestRun_CompletesImmediately_When_QueueEmpty(t *testing.T) {
	t.Parallel()

	res, err := New(testOptions(WithWorkers(4))...).Run(context.Background(), queue.New[*job.Job]())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Jobs)
	assert.Equal(t, 1, res.Workers)
}

func TestNew_ClampsWorkers_When_NonPositive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, New(WithWorkers(0)).cfg.workers)
	assert.Equal(t, 1, New(WithWorkers(-3)).cfg.workers)
}
