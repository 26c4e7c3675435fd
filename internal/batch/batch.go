// Package batch drains a job queue into line-oriented command files for a
// cluster scheduler's array jobs. Each line of <index>.dat is one shell
// command; the array task with index i runs line i.
package batch

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dkoosis/sweep/internal/job"
	"github.com/dkoosis/sweep/internal/queue"
)

// DefaultMaxLines is the largest array Slurm accepts by default.
const DefaultMaxLines = 4500

// FileExt is the extension of batch files.
const FileExt = ".dat"

// ErrNotDirectory is returned when the batch path exists as a regular file.
var ErrNotDirectory = errors.New("batch path exists and is not a directory")

// File describes one written batch file.
type File struct {
	Path  string
	Lines int
}

// FileName returns the name of the batch file with the given index.
func FileName(index int) string { return strconv.Itoa(index) + FileExt }

// CheckDir fails if dir cannot be used as a batch directory. It does not
// modify the filesystem.
func CheckDir(dir string) error {
	st, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("batch directory: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return nil
}

// PrepareDir replaces dir with an empty directory.
func PrepareDir(dir string) error {
	if err := CheckDir(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear batch directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create batch directory: %w", err)
	}
	return nil
}

// Emit writes every command of every queued job to dir, at most maxLines per
// file, and returns the files in index order. For P commands it writes
// exactly ceil(P/maxLines) files. dir must already exist.
func Emit(dir string, q *queue.Queue[*job.Job], maxLines int) ([]File, error) {
	if maxLines <= 0 {
		return nil, fmt.Errorf("max lines must be positive, got %d", maxLines)
	}

	w := &writer{dir: dir, max: maxLines}
	for {
		j, ok := q.TryPop()
		if !ok {
			break
		}
		for _, line := range j.CLI() {
			if err := w.writeLine(line); err != nil {
				_ = w.close()
				return w.files, err
			}
		}
	}
	if err := w.close(); err != nil {
		return w.files, err
	}
	return w.files, nil
}

type writer struct {
	dir   string
	max   int
	files []File
	f     *os.File
	buf   *bufio.Writer
}

func (w *writer) writeLine(line string) error {
	if w.f == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	if _, err := w.buf.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", w.current().Path, err)
	}
	w.current().Lines++
	if w.current().Lines == w.max {
		return w.close()
	}
	return nil
}

func (w *writer) open() error {
	path := filepath.Join(w.dir, FileName(len(w.files)))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create batch file: %w", err)
	}
	w.f = f
	w.buf = bufio.NewWriter(f)
	w.files = append(w.files, File{Path: path})
	return nil
}

func (w *writer) current() *File { return &w.files[len(w.files)-1] }

func (w *writer) close() error {
	if w.f == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	closeErr := w.f.Close()
	w.f, w.buf = nil, nil
	if flushErr != nil {
		return fmt.Errorf("flush batch file: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close batch file: %w", closeErr)
	}
	return nil
}

// Lines returns the total number of commands in files.
func Lines(files []File) int {
	n := 0
	for _, f := range files {
		n += f.Lines
	}
	return n
}
