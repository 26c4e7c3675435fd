package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ReturnsNewestFirst_When_RunsRecorded(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.True(t, s.Enabled())

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, kind := range []string{"local", "batch", "local"} {
		require.NoError(t, s.Record(Run{
			RunID:      string(rune('a' + i)),
			Started:    base.Add(time.Duration(i) * time.Hour),
			Kind:       kind,
			Command:    "sweep run data",
			Jobs:       10 * (i + 1),
			Commands:   10 * (i + 1),
			FailedJobs: i,
			Duration:   1500 * time.Millisecond,
			Location:   "results/x",
		}))
	}

	runs, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
	assert.Equal(t, "batch", runs[1].Kind)
	assert.Equal(t, base.Add(time.Hour), runs[1].Started)
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.Equal(t, "results/x", runs[1].Location)
}

func TestStore_RejectsDuplicateRunID_When_RecordedTwice(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	run := Run{RunID: "same", Started: time.Now(), Kind: "local", Command: "sweep"}
	require.NoError(t, s.Record(run))
	assert.Error(t, s.Record(run))
}

func TestStore_IgnoresCalls_When_Disabled(t *testing.T) {
	t.Parallel()

	s, err := Open("")
	require.NoError(t, err)
	assert.False(t, s.Enabled())
	assert.NoError(t, s.Record(Run{RunID: "x"}))

	runs, err := s.Recent(5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, s.Close())
}
